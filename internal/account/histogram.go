package account

import "github.com/shopspring/decimal"

// CounterSnapshot is one view of the tracker's activity counters.
type CounterSnapshot struct {
	Ordered         int
	Filled          int
	PartiallyFilled int
	Canceled        int
	Volume          decimal.Decimal
}

// histogram is a 24h rolling record of per-second activity, queryable as
// "sum of the last N seconds". The current second is the write slot; Shift
// advances it.
type histogram struct {
	ordered  []int
	filled   []int
	partial  []int
	canceled []int
	volume   []float64
	pos      int
	used     int
}

func newHistogram(seconds int) *histogram {
	return &histogram{
		ordered:  make([]int, seconds),
		filled:   make([]int, seconds),
		partial:  make([]int, seconds),
		canceled: make([]int, seconds),
		volume:   make([]float64, seconds),
		used:     1,
	}
}

func (h *histogram) shift() {
	h.pos = (h.pos + 1) % len(h.ordered)
	h.ordered[h.pos] = 0
	h.filled[h.pos] = 0
	h.partial[h.pos] = 0
	h.canceled[h.pos] = 0
	h.volume[h.pos] = 0
	if h.used < len(h.ordered) {
		h.used++
	}
}

// sum walks the last sec slots, newest first.
func (h *histogram) sum(sec int) CounterSnapshot {
	if sec > h.used {
		sec = h.used
	}
	var snap CounterSnapshot
	var volume float64
	idx := h.pos
	for i := 0; i < sec; i++ {
		snap.Ordered += h.ordered[idx]
		snap.Filled += h.filled[idx]
		snap.PartiallyFilled += h.partial[idx]
		snap.Canceled += h.canceled[idx]
		volume += h.volume[idx]
		idx--
		if idx < 0 {
			idx = len(h.ordered) - 1
		}
	}
	snap.Volume = decimal.NewFromFloat(volume).RoundBank(8)
	return snap
}
