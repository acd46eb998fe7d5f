package book

import (
	"testing"

	"main/internal/enum"
)

func TestPriceKeyedUpdateAndZeroDelete(t *testing.T) {
	b := New()
	b.UpdateBids([]PriceSize{{Price: 100, Size: 3}, {Price: 99.5, Size: 4}, {Price: 99, Size: 1}})
	b.UpdateAsks([]PriceSize{{Price: 100.5, Size: 2}, {Price: 101, Size: 1}})

	if got := b.BestBid(); got != 100 {
		t.Fatalf("best bid %v", got)
	}
	if got := b.BestAsk(); got != 100.5 {
		t.Fatalf("best ask %v", got)
	}
	if got := b.Mid(); got != 100.25 {
		t.Fatalf("mid %v", got)
	}

	// size zero removes the level
	b.UpdateBids([]PriceSize{{Price: 100, Size: 0}})
	if got := b.BestBid(); got != 99.5 {
		t.Fatalf("best bid after delete %v", got)
	}

	// same price replaces in place
	b.UpdateBids([]PriceSize{{Price: 99.5, Size: 7}})
	bids := b.Bids()
	if len(bids) != 2 || bids[0].Size != 7 {
		t.Fatalf("bids %+v", bids)
	}
}

func TestBidsAndAsksOrderedBestFirst(t *testing.T) {
	b := New()
	b.UpdateBids([]PriceSize{{Price: 99, Size: 1}, {Price: 100, Size: 1}, {Price: 98, Size: 1}})
	b.UpdateAsks([]PriceSize{{Price: 103, Size: 1}, {Price: 101, Size: 1}, {Price: 102, Size: 1}})

	bids := b.Bids()
	for i := 1; i < len(bids); i++ {
		if bids[i].Price > bids[i-1].Price {
			t.Fatalf("bids not descending: %+v", bids)
		}
	}
	asks := b.Asks()
	for i := 1; i < len(asks); i++ {
		if asks[i].Price < asks[i-1].Price {
			t.Fatalf("asks not ascending: %+v", asks)
		}
	}
}

func TestIDKeyedContractValueLifecycle(t *testing.T) {
	b := New()
	b.Insert([]IDEntry{
		{ID: 1, Side: enum.SideBuy, Price: 100, Size: 1000},
		{ID: 2, Side: enum.SideSell, Price: 101, Size: 505},
	}, 1)

	bids := b.Bids()
	if len(bids) != 1 || bids[0].Size != 10 { // 1000 / 100
		t.Fatalf("contract value bid %+v", bids)
	}
	asks := b.Asks()
	if len(asks) != 1 || asks[0].Size != 5 { // 505 / 101
		t.Fatalf("contract value ask %+v", asks)
	}

	b.Change([]IDEntry{{ID: 1, Side: enum.SideBuy, Size: 500}}, 1)
	if got := b.Bids()[0].Size; got != 5 {
		t.Fatalf("changed bid size %v", got)
	}

	// unknown id is ignored
	b.Change([]IDEntry{{ID: 9, Side: enum.SideBuy, Size: 1}}, 1)
	if got := len(b.Bids()); got != 1 {
		t.Fatalf("unknown id change added a level: %d", got)
	}

	b.Delete([]IDEntry{{ID: 1, Side: enum.SideBuy}}, 1)
	if got := b.BestBid(); got != 0 {
		t.Fatalf("bid after delete %v", got)
	}
}

func TestIDKeyedDirectSizeLifecycle(t *testing.T) {
	b := New()
	b.Insert2([]IDEntry{{ID: 3, Side: enum.SideSell, Price: 102, Size: 4}}, 1)
	if got := b.Asks()[0].Size; got != 4 {
		t.Fatalf("direct size %v", got)
	}
	b.Change2([]IDEntry{{ID: 3, Side: enum.SideSell, Size: 2}}, 1)
	if got := b.Asks()[0].Size; got != 2 {
		t.Fatalf("changed direct size %v", got)
	}
	b.Delete2([]IDEntry{{ID: 3, Side: enum.SideSell}}, 1)
	if got := len(b.Asks()); got != 0 {
		t.Fatalf("asks after delete %d", got)
	}
}

func TestClearDropsBothSides(t *testing.T) {
	b := New()
	b.UpdateBids([]PriceSize{{Price: 100, Size: 1}})
	b.UpdateAsks([]PriceSize{{Price: 101, Size: 1}})
	b.Clear()
	if b.BestBid() != 0 || b.BestAsk() != 0 {
		t.Fatal("clear left levels behind")
	}
}

func TestSizeGroupTranches(t *testing.T) {
	b := New()
	b.UpdateAsks([]PriceSize{
		{Price: 101, Size: 3},
		{Price: 102, Size: 3},
		{Price: 103, Size: 3},
		{Price: 104, Size: 3},
	})
	b.UpdateBids([]PriceSize{
		{Price: 100, Size: 3},
		{Price: 99, Size: 3},
		{Price: 98, Size: 3},
		{Price: 97, Size: 3},
	})

	g := b.SizeGroup(2, 100, 3, 0)
	if len(g.Ask) != 3 || g.Ask[0] != 101 || g.Ask[1] != 102 || g.Ask[2] != 103 {
		t.Fatalf("ask tranches %+v", g.Ask)
	}
	if len(g.Bid) != 3 || g.Bid[0] != 100 || g.Bid[1] != 99 || g.Bid[2] != 98 {
		t.Fatalf("bid tranches %+v", g.Bid)
	}
}

func TestSizeGroupStartPriceSkipsInsideLevels(t *testing.T) {
	b := New()
	b.UpdateAsks([]PriceSize{
		{Price: 101, Size: 3},
		{Price: 102, Size: 3},
		{Price: 103, Size: 3},
	})
	b.UpdateBids([]PriceSize{{Price: 100, Size: 3}})

	g := b.SizeGroup(2, 100, 2, 101)
	if len(g.Ask) != 2 || g.Ask[0] != 102 || g.Ask[1] != 103 {
		t.Fatalf("ask tranches from start %+v", g.Ask)
	}
}

func TestSizeGroupEmptySideFallsBackToMid(t *testing.T) {
	b := New()
	b.UpdateBids([]PriceSize{{Price: 100, Size: 5}})
	b.UpdateAsks([]PriceSize{{Price: 102, Size: 5}})
	mid := b.Mid()

	// tranche size larger than total depth never fills, so both sides fall back
	g := b.SizeGroup(100, 10, 2, 0)
	if len(g.Ask) != 2 || g.Ask[0] != mid || g.Ask[1] != mid {
		t.Fatalf("ask fallback %+v, mid %v", g.Ask, mid)
	}
	if len(g.Bid) != 2 || g.Bid[0] != mid {
		t.Fatalf("bid fallback %+v, mid %v", g.Bid, mid)
	}
}

func TestPriceGroupBuckets(t *testing.T) {
	b := New()
	b.UpdateAsks([]PriceSize{
		{Price: 100.6, Size: 1},
		{Price: 100.8, Size: 2},
		{Price: 101.6, Size: 3},
	})
	b.UpdateBids([]PriceSize{
		{Price: 100.4, Size: 4},
		{Price: 99.4, Size: 5},
	})
	// mid = (100.4 + 100.6) / 2 = 100.5

	g := b.PriceGroup(1)
	if len(g.Ask) != 2 || g.Ask[0] != 3 || g.Ask[1] != 3 {
		t.Fatalf("ask buckets %+v", g.Ask)
	}
	if len(g.Bid) != 2 || g.Bid[0] != 4 || g.Bid[1] != 5 {
		t.Fatalf("bid buckets %+v", g.Bid)
	}
}

func TestPriceGroupEmptySide(t *testing.T) {
	b := New()
	g := b.PriceGroup(1)
	if len(g.Ask) != 1 || g.Ask[0] != 0 || len(g.Bid) != 1 || g.Bid[0] != 0 {
		t.Fatalf("empty book groups %+v", g)
	}
}

func TestLagRingMean(t *testing.T) {
	b := New()
	if got := b.TimeLag(); got != 0 {
		t.Fatalf("idle lag %v", got)
	}
	b.RecordLag(10)
	b.RecordLag(20)
	if got := b.TimeLag(); got != 15 {
		t.Fatalf("mean lag %v", got)
	}
}
