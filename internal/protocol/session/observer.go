package session

import "time"

// FrameEvent describes one completed iteration of the exchange loop.
type FrameEvent struct {
	SessionID string
	Role      Role
	Iteration int32

	// Bytes is the frame size on the wire, length prefix included.
	Bytes int

	// RTT is write-frame to ack-received on the transmitter, read-frame to ack-written on the receiver.
	RTT time.Duration
}

// Result is the terminal outcome of one session.
type Result struct {
	SessionID string
	Role      Role
	Remote    string
	Stats     Stats
	Err       error
}

// Observer receives session progress. Implementations shared across sessions must be
// safe for concurrent use.
type Observer interface {
	SessionStarted(id string, role Role)
	FrameCompleted(ev FrameEvent)
	SessionClosed(res Result)
}

type NopObserver struct{}

func (NopObserver) SessionStarted(string, Role) {}
func (NopObserver) FrameCompleted(FrameEvent)   {}
func (NopObserver) SessionClosed(Result)        {}
