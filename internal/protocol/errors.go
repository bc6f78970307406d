package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies a session failure.
type Kind uint8

const (
	KindConnection Kind = iota + 1
	KindProtocol
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindProtocol:
		return "protocol"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching by kind.
var (
	ErrConnection = errors.New("protocol: connection error")
	ErrProtocol   = errors.New("protocol: protocol violation")
	ErrIO         = errors.New("protocol: io error")
)

// Error is the typed failure surfaced by the handshake, exchange loop and transport glue.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s error: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s error: %s: %s", e.Kind, e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrConnection:
		return e.Kind == KindConnection
	case ErrProtocol:
		return e.Kind == KindProtocol
	case ErrIO:
		return e.Kind == KindIO
	}
	return false
}

// NewError builds a typed error. A typed cause is unwrapped so the result matches
// exactly one kind.
func NewError(kind Kind, op, msg string, cause error) error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: untyped(cause)}
}

func ConnectionError(op string, err error) error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}

func ProtocolError(op, msg string) error {
	return &Error{Kind: KindProtocol, Op: op, Msg: msg}
}

// IOError wraps err as an io failure. Errors already carrying another kind pass through.
func IOError(op string, err error) error {
	var pe *Error
	if errors.As(err, &pe) && pe.Kind != KindIO {
		return err
	}
	return &Error{Kind: KindIO, Op: op, Err: untyped(err)}
}

func untyped(err error) error {
	var pe *Error
	for errors.As(err, &pe) {
		err = pe.Err
	}
	return err
}

// KindOf reports the kind carried by err, or zero if err is untyped.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
