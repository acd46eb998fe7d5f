package book

import "github.com/tidwall/btree"

// SizeGroup splits each side into price tranches of cumulative size splitsize,
// used to estimate slippage for a given clip. It walks from the touch outward,
// emitting the price at which each tranche fills, up to limitnum tranches or
// limitprice away from the start. Empty or too-thin sides fall back to the
// mid price for every tranche.
func (b *Book) SizeGroup(splitsize, limitprice float64, limitnum int, startprice float64) Group {
	mid := b.Mid()

	b.gate.Enter()
	asks := walkSizeGroup(b.asks, splitsize, limitprice, limitnum, startprice, 1)
	bids := walkSizeGroup(b.bids, splitsize, limitprice, limitnum, startprice, -1)
	b.gate.Leave()

	if len(asks) == 0 {
		asks = fill(mid, limitnum)
	}
	if len(bids) == 0 {
		bids = fill(mid, limitnum)
	}
	return Group{Ask: asks, Bid: bids}
}

func walkSizeGroup(tr *btree.BTreeG[Level], splitsize, limitprice float64, limitnum int, startprice float64, dir float64) []float64 {
	var (
		total float64
		out   []float64
		start = startprice
	)
	tr.Scan(func(level Level) bool {
		if start != 0 && level.Price*dir <= start*dir {
			return true
		}
		if start == 0 {
			start = level.Price
		}
		total += level.Size
		if total > splitsize {
			out = append(out, level.Price)
			if len(out) >= limitnum {
				return false
			}
			total -= splitsize
		}
		return (level.Price-start)*dir <= limitprice
	})
	return out
}

func fill(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// PriceGroup buckets each side into fixed-width price bands of splitprice
// relative to the mid and returns the total size per band, walking from the
// touch outward. Empty sides yield a single zero bucket.
func (b *Book) PriceGroup(splitprice float64) Group {
	mid := b.Mid()

	b.gate.Enter()
	asks := walkPriceGroup(b.asks, splitprice, mid)
	bids := walkPriceGroup(b.bids, splitprice, mid)
	b.gate.Leave()

	if len(asks) == 0 {
		asks = []float64{0}
	}
	if len(bids) == 0 {
		bids = []float64{0}
	}
	return Group{Ask: asks, Bid: bids}
}

func walkPriceGroup(tr *btree.BTreeG[Level], splitprice, mid float64) []float64 {
	var (
		out     []float64
		current int64
		first   = true
	)
	tr.Scan(func(level Level) bool {
		bucket := int64((level.Price - mid) / splitprice)
		if first || bucket != current {
			out = append(out, 0)
			current = bucket
			first = false
		}
		out[len(out)-1] += level.Size
		return true
	})
	return out
}
