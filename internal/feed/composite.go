package feed

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"
)

// publicWaitLimit caps how long a private reconnect waits for the public
// feed to come back before proceeding anyway.
const publicWaitLimit = 60 * time.Second

// Composite pairs an exchange's public market-data feed with its private
// account feed. When only the private side drops, tokens are refreshed and
// it reconnects right away. When both drop, the private side holds its
// reconnect until the public side is back, so order state is never rebuilt
// against a stale book.
type Composite struct {
	Public  *Supervisor
	Private *Supervisor
}

func NewComposite(public, private Config) *Composite {
	pub := NewSupervisor(public)

	inner := private.Tokens
	private.Tokens = TokenFunc(func() error {
		deadline := time.Now().Add(publicWaitLimit)
		for !pub.Connected() {
			if time.Now().After(deadline) {
				logs.Errorf("[%s] public feed still down after %s, reconnecting private anyway",
					private.Name, publicWaitLimit)
				break
			}
			time.Sleep(time.Second)
		}
		if inner != nil {
			return inner.Refresh()
		}
		return nil
	})

	return &Composite{
		Public:  pub,
		Private: NewSupervisor(private),
	}
}

// Run blocks until ctx is cancelled, keeping both feeds alive.
func (c *Composite) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.Public.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		c.Private.Run(ctx)
	}()
	wg.Wait()
}

// Connected reports whether both sides are up.
func (c *Composite) Connected() bool {
	return c.Public.Connected() && c.Private.Connected()
}
