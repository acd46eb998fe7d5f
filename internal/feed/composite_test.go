package feed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeRefreshesTokensOnPrivateReconnect(t *testing.T) {
	stayUp := func(run int64, ctx context.Context, events chan<- Message, commands <-chan Command) error {
		<-ctx.Done()
		return ctx.Err()
	}

	var refreshed atomic.Int64
	pub := &scriptWorker{script: stayUp}
	prv := &scriptWorker{
		script: func(run int64, ctx context.Context, events chan<- Message, commands <-chan Command) error {
			if run == 1 {
				// drop right after connecting
				events <- Message{Kind: KindStatus, Connected: false}
				<-ctx.Done()
				return ctx.Err()
			}
			<-ctx.Done()
			return ctx.Err()
		},
	}

	fast := Backoff{Min: 10 * time.Millisecond, Max: 10 * time.Millisecond, Factor: 1}
	comp := NewComposite(
		Config{Name: "pub", Worker: pub, Backoff: fast},
		Config{
			Name:    "prv",
			Worker:  prv,
			Backoff: fast,
			Tokens:  TokenFunc(func() error { refreshed.Add(1); return nil }),
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go comp.Run(ctx)

	require.Eventually(t, comp.Connected, 5*time.Second, 10*time.Millisecond,
		"both feeds should come up after the private reconnect")
	assert.GreaterOrEqual(t, refreshed.Load(), int64(1), "tokens must be refreshed before the private reconnect")
	assert.GreaterOrEqual(t, comp.Private.Reconnects(), int64(1))
	assert.Zero(t, comp.Public.Reconnects())
}
