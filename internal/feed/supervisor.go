package feed

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/errors"
	"main/internal/guard"
)

// TokenSource regenerates auth material before a reconnect attempt.
type TokenSource interface {
	Refresh() error
}

// TokenFunc adapts a plain function to a TokenSource.
type TokenFunc func() error

func (f TokenFunc) Refresh() error { return f() }

// Config wires a Supervisor to its worker and handlers.
type Config struct {
	Name   string
	Worker Worker

	// Topics is the initial subscription list, sent in full on every
	// (re)connect. SendSubscribe grows it at runtime.
	Topics []string

	// OnFrame receives every raw frame. Panics inside the handler are
	// recovered and logged; they never take the supervisor down.
	OnFrame func(Message)

	// OnDisconnect fires exactly once per connected-to-down transition.
	OnDisconnect func()

	// Tokens, when set, is refreshed before each reconnect attempt.
	Tokens TokenSource

	// Gate pauses frame dispatch while foreground readers hold it.
	Gate *guard.Counter

	// WatchdogLimit is the number of silent seconds tolerated before the
	// connection is declared frozen. Zero means 30.
	WatchdogLimit int

	// StopTimeout bounds how long a dead worker may take to exit. Zero
	// means 10s.
	StopTimeout time.Duration

	Backoff Backoff
}

// Supervisor keeps one feed connection alive: it runs the worker, watches
// its liveness, and restarts it with fresh auth when it dies or freezes.
type Supervisor struct {
	cfg Config

	mu        sync.Mutex
	topics    []string
	commands  chan Command
	connected bool
	seen      bool
	pid       int

	reconnects atomic.Int64
	lag        *lagRing
}

func NewSupervisor(cfg Config) *Supervisor {
	if cfg.WatchdogLimit <= 0 {
		cfg.WatchdogLimit = 30
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	if cfg.Backoff.Max <= 0 {
		cfg.Backoff = DefaultBackoff()
	}
	return &Supervisor{
		cfg:    cfg,
		topics: slices.Clone(cfg.Topics),
		lag:    newLagRing(100),
	}
}

// Run blocks until ctx is cancelled, reconnecting with backoff whenever the
// worker exits or the watchdog declares the connection frozen.
func (s *Supervisor) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if s.tookConnection() {
			attempt = 0
		}
		s.reconnects.Add(1)
		attempt++
		logs.Infof("[%s] websocket restarting, attempt %d, err: %+v", s.cfg.Name, attempt, err)

		if s.cfg.Tokens != nil {
			if err := s.cfg.Tokens.Refresh(); err != nil {
				logs.Errorf("[%s] refresh token, err: %+v", s.cfg.Name, err)
			}
		}
		if err := sleepBackoff(ctx, s.cfg.Backoff, attempt); err != nil {
			return
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan Message, 1024)
	commands := make(chan Command, 16)
	s.mu.Lock()
	s.commands = commands
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.cfg.Worker.Run(wctx, events, commands)
	}()

	defer s.markDown()

	wdt := 0
	watchdog := time.NewTicker(time.Second)
	defer watchdog.Stop()

	for {
		select {
		case msg := <-events:
			switch msg.Kind {
			case KindFrame:
				wdt = 0
				if !msg.Recv.IsZero() {
					s.lag.record(time.Since(msg.Recv))
				}
				if s.cfg.Gate != nil {
					s.cfg.Gate.Wait()
				}
				s.dispatch(msg)

			case KindTick:
				wdt = 0

			case KindStatus:
				if msg.Connected {
					s.markUp()
					s.pushSubscribe(Command{Topics: s.currentTopics()})
				} else {
					s.markDown()
					cancel()
					return s.waitStop(done, events)
				}

			case KindPID:
				s.mu.Lock()
				s.pid = msg.PID
				s.mu.Unlock()

			case KindLog:
				logs.Infof("[%s] %s", s.cfg.Name, msg.Text)

			case KindDown:
				s.markDown()
				cancel()
				return s.waitStop(done, events)
			}

		case <-watchdog.C:
			wdt++
			if wdt > s.cfg.WatchdogLimit {
				logs.Errorf("[%s] websocket frozen, no data for %ds", s.cfg.Name, wdt)
				s.markDown()
				cancel()
				return s.waitStop(done, events)
			}

		case err := <-done:
			s.markDown()
			return err

		case <-ctx.Done():
			cancel()
			return s.waitStop(done, events)
		}
	}
}

// waitStop waits for the worker to exit, draining leftover events so a
// blocked sender cannot wedge the shutdown.
func (s *Supervisor) waitStop(done <-chan error, events <-chan Message) error {
	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()
	for {
		select {
		case err := <-done:
			return err
		case <-events:
		case <-timer.C:
			logs.Errorf("[%s] worker stop timed out after %s", s.cfg.Name, s.cfg.StopTimeout)
			return errors.New("worker stop timed out")
		}
	}
}

func (s *Supervisor) dispatch(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("[%s] frame handler panic: %+v", s.cfg.Name, r)
		}
	}()
	if s.cfg.OnFrame != nil {
		s.cfg.OnFrame(msg)
	}
}

// SendSubscribe adds topic to the subscription list and pushes the full list
// to the live worker. The full list is also replayed on every reconnect.
func (s *Supervisor) SendSubscribe(topic string) {
	s.mu.Lock()
	if !slices.Contains(s.topics, topic) {
		s.topics = append(s.topics, topic)
	}
	topics := slices.Clone(s.topics)
	s.mu.Unlock()
	s.pushSubscribe(Command{Topic: topic, Topics: topics})
}

func (s *Supervisor) pushSubscribe(cmd Command) {
	s.mu.Lock()
	ch := s.commands
	s.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- cmd:
	default:
		logs.Errorf("[%s] subscribe queue full, dropped %q", s.cfg.Name, cmd.Topic)
	}
}

func (s *Supervisor) currentTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.topics)
}

func (s *Supervisor) markUp() {
	s.mu.Lock()
	s.connected = true
	s.seen = true
	s.mu.Unlock()
}

// markDown clears the connected flag and fires the disconnect handler, once
// per connected-to-down transition.
func (s *Supervisor) markDown() {
	s.mu.Lock()
	was := s.connected
	s.connected = false
	s.mu.Unlock()
	if was && s.cfg.OnDisconnect != nil {
		s.cfg.OnDisconnect()
	}
}

// tookConnection reports whether the last attempt reached connected state,
// consuming the flag.
func (s *Supervisor) tookConnection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := s.seen
	s.seen = false
	return seen
}

func (s *Supervisor) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

func (s *Supervisor) Reconnects() int64 { return s.reconnects.Load() }

// TimeLag returns the mean handler delay over the recent frame window.
func (s *Supervisor) TimeLag() time.Duration { return s.lag.mean() }

type lagRing struct {
	mu   sync.Mutex
	buf  []time.Duration
	pos  int
	used int
}

func newLagRing(size int) *lagRing {
	return &lagRing{buf: make([]time.Duration, size)}
}

func (r *lagRing) record(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.pos] = d
	r.pos = (r.pos + 1) % len(r.buf)
	if r.used < len(r.buf) {
		r.used++
	}
}

func (r *lagRing) mean() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.used == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < r.used; i++ {
		total += r.buf[i]
	}
	return total / time.Duration(r.used)
}
