package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/ttcp/internal/protocol/frame"
)

var ErrSessionUsed = errors.New("session: already run")

// Role is which end of the session this process plays.
type Role uint8

const (
	RoleTransmitter Role = iota + 1
	RoleReceiver
)

func (r Role) String() string {
	switch r {
	case RoleTransmitter:
		return "transmit"
	case RoleReceiver:
		return "receive"
	default:
		return "unknown"
	}
}

// State is the session lifecycle position. Closed is terminal.
type State uint8

const (
	StateIdle State = iota
	StateHandshake
	StateExchanging
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshake:
		return "handshake"
	case StateExchanging:
		return "exchanging"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// machine guards lifecycle state so it can be read while the loop runs.
type machine struct {
	mu        sync.Mutex
	state     State
	iteration int32
	err       error
}

func (m *machine) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return ErrSessionUsed
	}
	m.state = StateHandshake
	return nil
}

func (m *machine) exchanging() {
	m.mu.Lock()
	m.state = StateExchanging
	m.mu.Unlock()
}

func (m *machine) advance(i int32) {
	m.mu.Lock()
	m.iteration = i
	m.mu.Unlock()
}

func (m *machine) close(err error) {
	m.mu.Lock()
	m.state = StateClosed
	m.err = err
	m.mu.Unlock()
}

// State returns the current lifecycle state.
func (m *machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Iteration returns the number of frames completed so far.
func (m *machine) Iteration() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.iteration
}

// Err returns the terminal error, nil while running or after success.
func (m *machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Stats are the running totals of one session. BytesSent and BytesReceived count
// every wire byte, descriptor and acks included.
type Stats struct {
	Descriptor    frame.Descriptor
	Frames        int32
	PayloadBytes  int64
	BytesSent     int64
	BytesReceived int64
	Started       time.Time
	Elapsed       time.Duration
}

const mebibyte = 1024 * 1024

// MiB is the payload volume transferred so far.
func (s Stats) MiB() float64 {
	return float64(s.PayloadBytes) / mebibyte
}

// MiBPerSecond is payload throughput over the elapsed session time.
func (s Stats) MiBPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return s.MiB() / s.Elapsed.Seconds()
}

func formatMiB(v float64) string {
	return fmt.Sprintf("%.3f MiB", v)
}
