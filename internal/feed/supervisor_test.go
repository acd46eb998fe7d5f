package feed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// scriptWorker connects immediately, then follows a per-run script.
type scriptWorker struct {
	runs   atomic.Int64
	script func(run int64, ctx context.Context, events chan<- Message, commands <-chan Command) error
}

func (w *scriptWorker) Run(ctx context.Context, events chan<- Message, commands <-chan Command) error {
	run := w.runs.Add(1)
	defer func() { events <- Message{Kind: KindDown} }()
	events <- Message{Kind: KindStatus, Connected: true}
	return w.script(run, ctx, events, commands)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestSupervisorWatchdogFreezeRestartsWorker(t *testing.T) {
	var disconnects atomic.Int64

	// first run goes silent after connecting, second run keeps ticking
	w := &scriptWorker{
		script: func(run int64, ctx context.Context, events chan<- Message, commands <-chan Command) error {
			if run == 1 {
				<-ctx.Done()
				return ctx.Err()
			}
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					select {
					case events <- Message{Kind: KindTick, Connected: true}:
					default:
					}
				}
			}
		},
	}

	s := NewSupervisor(Config{
		Name:          "test",
		Worker:        w,
		WatchdogLimit: 1,
		StopTimeout:   time.Second,
		Backoff:       Backoff{Min: 10 * time.Millisecond, Max: 10 * time.Millisecond, Factor: 1},
		OnDisconnect:  func() { disconnects.Add(1) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitFor(t, time.Second, s.Connected)

	// the silent worker must trip the watchdog and be replaced
	waitFor(t, 10*time.Second, func() bool { return w.runs.Load() >= 2 })
	if got := disconnects.Load(); got != 1 {
		t.Fatalf("disconnect handler fired %d times, want 1", got)
	}

	waitFor(t, time.Second, s.Connected)
	if s.Reconnects() == 0 {
		t.Fatal("reconnect counter not incremented")
	}
}

func TestSupervisorDispatchesFramesAndRecoversPanic(t *testing.T) {
	frames := make(chan []byte, 10)
	w := &scriptWorker{
		script: func(run int64, ctx context.Context, events chan<- Message, commands <-chan Command) error {
			events <- Message{Kind: KindFrame, Data: []byte("boom"), Recv: time.Now()}
			events <- Message{Kind: KindFrame, Data: []byte("ok"), Recv: time.Now()}
			<-ctx.Done()
			return ctx.Err()
		},
	}

	s := NewSupervisor(Config{
		Name:   "test",
		Worker: w,
		OnFrame: func(m Message) {
			if string(m.Data) == "boom" {
				panic("handler blew up")
			}
			frames <- m.Data
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case data := <-frames:
		if string(data) != "ok" {
			t.Fatalf("unexpected frame %q", data)
		}
	case <-time.After(time.Second):
		t.Fatal("frame after panic never dispatched")
	}
}

func TestSupervisorReplaysTopicsOnReconnect(t *testing.T) {
	subs := make(chan Command, 10)
	w := &scriptWorker{
		script: func(run int64, ctx context.Context, events chan<- Message, commands <-chan Command) error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case cmd := <-commands:
					subs <- cmd
					if run == 1 {
						// die after the initial subscribe to force a reconnect
						events <- Message{Kind: KindStatus, Connected: false}
						<-ctx.Done()
						return ctx.Err()
					}
				}
			}
		},
	}

	s := NewSupervisor(Config{
		Name:    "test",
		Worker:  w,
		Topics:  []string{"depth.BTCUSDT"},
		Backoff: Backoff{Min: 10 * time.Millisecond, Max: 10 * time.Millisecond, Factor: 1},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	first := <-subs
	if len(first.Topics) != 1 || first.Topics[0] != "depth.BTCUSDT" {
		t.Fatalf("initial subscribe %+v", first)
	}

	select {
	case second := <-subs:
		if len(second.Topics) != 1 || second.Topics[0] != "depth.BTCUSDT" {
			t.Fatalf("replayed subscribe %+v", second)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("topics not replayed after reconnect")
	}
}

func TestSupervisorSendSubscribeGrowsTopicList(t *testing.T) {
	subs := make(chan Command, 10)
	w := &scriptWorker{
		script: func(run int64, ctx context.Context, events chan<- Message, commands <-chan Command) error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case cmd := <-commands:
					subs <- cmd
				}
			}
		},
	}

	s := NewSupervisor(Config{Name: "test", Worker: w, Topics: []string{"a"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	<-subs // initial
	s.SendSubscribe("b")
	s.SendSubscribe("b") // duplicate is not re-added

	cmd := <-subs
	if cmd.Topic != "b" || len(cmd.Topics) != 2 {
		t.Fatalf("grow subscribe %+v", cmd)
	}
	cmd = <-subs
	if len(cmd.Topics) != 2 {
		t.Fatalf("duplicate topic grew the list: %+v", cmd)
	}
}
