package book

import "sync"

// meanRing keeps the mean over the last n samples.
type meanRing struct {
	mu      sync.Mutex
	samples []float64
	next    int
	filled  bool
}

func newMeanRing(n int) *meanRing {
	return &meanRing{samples: make([]float64, n)}
}

func (r *meanRing) add(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[r.next] = v
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.filled = true
	}
}

func (r *meanRing) mean() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.next
	if r.filled {
		n = len(r.samples)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += r.samples[i]
	}
	return sum / float64(n)
}
