// Package book maintains best bid/ask and depth from incremental feed updates.
//
// Three update vocabularies are supported: price/size pairs where size zero
// deletes the level, insert/change/delete keyed by exchange level id with the
// size quoted in contract value, and the same keyed operations with the size
// quoted directly. Mutation is single-writer (the feed context); every other
// reader brackets its access with the drain gate.
package book

import (
	"github.com/tidwall/btree"

	"main/internal/enum"
	"main/internal/guard"
)

// Level is one depth entry. Key is the sort key: the price for price-keyed
// feeds (bids negated so both trees ascend), or the sign-adjusted exchange
// level id.
type Level struct {
	Key   float64
	Price float64
	Size  float64
}

// PriceSize is a price-keyed update entry. Size zero removes the level.
type PriceSize struct {
	Price float64
	Size  float64
}

// IDEntry is a level-id keyed update entry.
type IDEntry struct {
	ID    int64
	Side  enum.Side
	Price float64
	Size  float64
}

// Group holds per-side query results.
type Group struct {
	Ask []float64
	Bid []float64
}

func byKey(a, b Level) bool { return a.Key < b.Key }

// Book aggregates one symbol's order book.
type Book struct {
	asks *btree.BTreeG[Level]
	bids *btree.BTreeG[Level]
	gate *guard.Counter
	lag  *meanRing
}

func New() *Book {
	return &Book{
		asks: btree.NewBTreeG(byKey),
		bids: btree.NewBTreeG(byKey),
		gate: guard.NewCounter("book"),
		lag:  newMeanRing(100),
	}
}

// Gate exposes the drain gate for out-of-feed readers.
func (b *Book) Gate() *guard.Counter {
	return b.gate
}

// Clear drops both sides. Used when a feed resubscribes from scratch.
func (b *Book) Clear() {
	b.gate.Wait()
	b.asks = btree.NewBTreeG(byKey)
	b.bids = btree.NewBTreeG(byKey)
}

// UpdateBids applies price-keyed bid entries.
func (b *Book) UpdateBids(entries []PriceSize) {
	b.gate.Wait()
	update(b.bids, entries, -1)
}

// UpdateAsks applies price-keyed ask entries.
func (b *Book) UpdateAsks(entries []PriceSize) {
	b.gate.Wait()
	update(b.asks, entries, 1)
}

func update(tr *btree.BTreeG[Level], entries []PriceSize, sign float64) {
	for _, e := range entries {
		key := e.Price * sign
		if e.Size == 0 {
			tr.Delete(Level{Key: key})
			continue
		}
		tr.Set(Level{Key: key, Price: e.Price, Size: e.Size})
	}
}

// Insert applies id-keyed entries with the size quoted in contract value; the
// stored size is size/price in underlying units. Buy entries land on the bid
// tree, everything else on the ask tree; ids are negated for sells so the two
// sides share one id namespace, and sign flips that convention for exchanges
// that mirror it.
func (b *Book) Insert(entries []IDEntry, sign int64) {
	b.gate.Wait()
	for _, e := range entries {
		tr, key := b.sideAndKey(e, sign)
		size := e.Size
		if e.Price != 0 {
			size = e.Size / e.Price
		}
		tr.Set(Level{Key: key, Price: e.Price, Size: size})
	}
}

// Change updates the size of existing id-keyed levels (contract value
// quoting). Unknown ids are ignored: expected during reconnection replay.
func (b *Book) Change(entries []IDEntry, sign int64) {
	b.gate.Wait()
	for _, e := range entries {
		tr, key := b.sideAndKey(e, sign)
		level, ok := tr.Get(Level{Key: key})
		if !ok {
			continue
		}
		if level.Price != 0 {
			level.Size = e.Size / level.Price
		} else {
			level.Size = e.Price
		}
		tr.Set(level)
	}
}

// Delete removes id-keyed levels. Unknown ids are ignored.
func (b *Book) Delete(entries []IDEntry, sign int64) {
	b.gate.Wait()
	for _, e := range entries {
		tr, key := b.sideAndKey(e, sign)
		tr.Delete(Level{Key: key})
	}
}

// Insert2 applies id-keyed entries with the size quoted directly.
func (b *Book) Insert2(entries []IDEntry, sign int64) {
	b.gate.Wait()
	for _, e := range entries {
		tr, key := b.sideAndKey(e, sign)
		tr.Set(Level{Key: key, Price: e.Price, Size: e.Size})
	}
}

// Change2 updates sizes of existing id-keyed levels (direct quoting).
func (b *Book) Change2(entries []IDEntry, sign int64) {
	b.gate.Wait()
	for _, e := range entries {
		tr, key := b.sideAndKey(e, sign)
		level, ok := tr.Get(Level{Key: key})
		if !ok {
			continue
		}
		level.Size = e.Size
		tr.Set(level)
	}
}

// Delete2 removes id-keyed levels (direct quoting).
func (b *Book) Delete2(entries []IDEntry, sign int64) {
	b.Delete(entries, sign)
}

func (b *Book) sideAndKey(e IDEntry, sign int64) (*btree.BTreeG[Level], float64) {
	if e.Side == enum.SideBuy {
		return b.bids, float64(e.ID * sign)
	}
	return b.asks, float64(-e.ID * sign)
}

// BestBid returns the highest bid price, 0 when the side is empty.
func (b *Book) BestBid() float64 {
	b.gate.Enter()
	defer b.gate.Leave()
	if level, ok := b.bids.Min(); ok {
		return level.Price
	}
	return 0
}

// BestAsk returns the lowest ask price, 0 when the side is empty.
func (b *Book) BestAsk() float64 {
	b.gate.Enter()
	defer b.gate.Leave()
	if level, ok := b.asks.Min(); ok {
		return level.Price
	}
	return 0
}

// Mid returns the bid/ask midpoint.
func (b *Book) Mid() float64 {
	return (b.BestBid() + b.BestAsk()) / 2
}

// Bids returns the bid levels, best first.
func (b *Book) Bids() []Level {
	b.gate.Enter()
	defer b.gate.Leave()
	return collect(b.bids)
}

// Asks returns the ask levels, best first.
func (b *Book) Asks() []Level {
	b.gate.Enter()
	defer b.gate.Leave()
	return collect(b.asks)
}

func collect(tr *btree.BTreeG[Level]) []Level {
	out := make([]Level, 0, tr.Len())
	tr.Scan(func(level Level) bool {
		out = append(out, level)
		return true
	})
	return out
}

// RecordLag feeds one event-to-handled latency sample in milliseconds.
func (b *Book) RecordLag(ms float64) {
	b.lag.add(ms)
}

// TimeLag returns the smoothed feed latency estimate in milliseconds.
func (b *Book) TimeLag() float64 {
	return b.lag.mean()
}
