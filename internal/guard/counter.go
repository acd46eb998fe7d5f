package guard

import (
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"
)

const (
	pollInterval = 10 * time.Millisecond
	reportEvery  = 100
)

// Counter is a cooperative drain gate between one writer and many readers.
//
// Readers bracket multi-field reads with Enter/Leave. The writer calls Wait
// before mutating and is guaranteed no reader is mid-read when it returns.
// It is not a mutex: exactly one logical writer per guarded resource is the
// caller's contract.
type Counter struct {
	name  string
	count atomic.Int64
}

// NewCounter creates a named drain counter. The name only shows up in
// diagnostic logs when Wait stalls.
func NewCounter(name string) *Counter {
	return &Counter{name: name}
}

// Enter marks the caller as inside a critical read. Re-entrant.
func (c *Counter) Enter() {
	c.count.Add(1)
}

// Leave undoes one Enter.
func (c *Counter) Leave() {
	c.count.Add(-1)
}

// Do runs fn between Enter and Leave.
func (c *Counter) Do(fn func()) {
	c.Enter()
	defer c.Leave()
	fn()
}

// Count returns the number of readers currently inside.
func (c *Counter) Count() int64 {
	return c.count.Load()
}

// Wait blocks until no reader is inside. A stalled drain is reported
// periodically but never fatal.
func (c *Counter) Wait() {
	n := c.count.Load()
	if n == 0 {
		return
	}

	logs.Debugf("drain counter[%s] : %d", c.name, n)
	polls := 0
	for c.count.Load() > 0 {
		time.Sleep(pollInterval)
		polls++
		if polls%reportEvery == 0 {
			logs.Infof("drain counter[%s] : %d", c.name, c.count.Load())
		}
	}
}
