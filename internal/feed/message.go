// Package feed keeps a trading socket alive across freezes and
// exchange-initiated disconnects. An isolated worker owns the real socket
// and relays every received frame, plus liveness markers, over a channel the
// supervisor drains; no tick for thirty consecutive seconds means the
// connection is frozen and the worker is torn down and restarted from
// scratch, regenerating auth tokens first when required.
package feed

import "time"

// Kind tags a worker-to-supervisor message.
type Kind uint8

const (
	// KindFrame delivers one raw frame from the socket.
	KindFrame Kind = iota + 1
	// KindPID announces the worker identity after a successful dial.
	KindPID
	// KindStatus signals a connected-state change.
	KindStatus
	// KindTick is the periodic watchdog marker while the state is unchanged.
	KindTick
	// KindLog forwards a worker-side diagnostic line.
	KindLog
	// KindDown is the worker's final message before exiting.
	KindDown
)

// Message is the tagged union carried on the worker's event channel.
type Message struct {
	Kind      Kind
	Data      []byte
	Connected bool
	PID       int
	Text      string
	Recv      time.Time
}

// Command is carried on the parallel command channel into the worker. A
// subscribe request always carries the full current topic list so a single
// payload can re-establish state after reconnect.
type Command struct {
	Topic  string
	Topics []string
}
