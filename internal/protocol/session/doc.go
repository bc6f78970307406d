// Package session runs one ttcp session over an open transport.
//
// Ownership boundary:
// - session descriptor handshake
// - transmitter and receiver exchange loops (window size 1)
// - session state machine, running stats and observer hooks
//
// A session owns its transport: Run closes it on completion, on error and on
// context cancellation. There is no end-of-session message; both sides stop
// after the agreed repetition count.
package session
