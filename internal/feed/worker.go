package feed

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"main/internal/errors"
)

// Worker owns the real socket for one connection attempt. Run blocks until
// the socket dies or ctx is cancelled; the supervisor restarts it with fresh
// channels each time.
type Worker interface {
	Run(ctx context.Context, events chan<- Message, commands <-chan Command) error
}

// SocketConfig configures the websocket worker.
type SocketConfig struct {
	Name string
	URL  string

	// Header builds the handshake headers per dial, so regenerated auth
	// tokens are picked up on restart.
	Header func() http.Header

	// Subscribe builds the wire payload for the full topic list.
	Subscribe func(topics []string) any

	HandshakeTimeout time.Duration
	TickInterval     time.Duration
}

// SocketWorker is the production Worker on a gorilla/websocket connection.
type SocketWorker struct {
	cfg SocketConfig
}

func NewSocketWorker(cfg SocketConfig) *SocketWorker {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &SocketWorker{cfg: cfg}
}

func (w *SocketWorker) Run(ctx context.Context, events chan<- Message, commands <-chan Command) error {
	defer send(ctx, events, Message{Kind: KindDown})

	var header http.Header
	if w.cfg.Header != nil {
		header = w.cfg.Header()
	}
	dialer := websocket.Dialer{HandshakeTimeout: w.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, w.cfg.URL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		send(ctx, events, Message{Kind: KindStatus, Connected: false})
		return errors.Wrapf(err, "dial %s", w.cfg.URL)
	}
	defer conn.Close()

	send(ctx, events, Message{Kind: KindPID, PID: os.Getpid()})
	send(ctx, events, Message{Kind: KindLog, Text: "websocket connect to : " + w.cfg.URL})
	send(ctx, events, Message{Kind: KindStatus, Connected: true})

	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			send(ctx, events, Message{Kind: KindFrame, Data: data, Recv: time.Now()})
		}
	}()

	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return ctx.Err()

		case err := <-readErr:
			send(ctx, events, Message{Kind: KindStatus, Connected: false})
			return errors.Wrap(err, "read")

		case cmd, ok := <-commands:
			if !ok {
				return nil
			}
			if w.cfg.Subscribe == nil {
				continue
			}
			if err := conn.WriteJSON(w.cfg.Subscribe(cmd.Topics)); err != nil {
				send(ctx, events, Message{Kind: KindStatus, Connected: false})
				return errors.Wrap(err, "write subscribe payload")
			}
			send(ctx, events, Message{Kind: KindLog, Text: "subscribed : " + cmd.Topic})

		case <-ticker.C:
			// liveness marker; dropped on a congested channel since the
			// frames themselves reset the watchdog
			select {
			case events <- Message{Kind: KindTick, Connected: true}:
			default:
			}
		}
	}
}

// send never blocks past cancellation: once the supervisor gives up on the
// events channel, a sender stuck on a full buffer still exits with ctx.
func send(ctx context.Context, events chan<- Message, m Message) {
	select {
	case events <- m:
	case <-ctx.Done():
	}
}
