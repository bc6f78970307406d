package stream

import (
	"errors"
	"io"
	"syscall"
	"time"

	"github.com/danmuck/ttcp/internal/protocol"
)

// Transport is the duplex byte stream one session runs over.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

type readDeadliner interface {
	SetReadDeadline(time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(time.Time) error
}

// ReadFull reads exactly len(buf) bytes into successive offsets of buf.
//
// A peer close before any byte returns io.EOF; a close after some bytes returns
// io.ErrUnexpectedEOF. A zero-byte read without error counts as a close. Interrupted
// reads are retried; any other failure is returned as an io-kind protocol.Error.
func ReadFull(r io.Reader, buf []byte) (int, error) {
	var n int
	for n < len(buf) {
		nr, err := r.Read(buf[n:])
		if nr > 0 {
			n += nr
		}
		if err != nil {
			if isInterrupt(err) {
				continue
			}
			if errors.Is(err, io.EOF) {
				if n == len(buf) {
					return n, nil
				}
				return n, closedAt(n)
			}
			return n, protocol.IOError("read", err)
		}
		if nr == 0 {
			return n, closedAt(n)
		}
	}
	return n, nil
}

// WriteFull writes all of buf, resuming from the current offset after partial writes.
// A write that accepts zero bytes without error stops with io.ErrShortWrite.
func WriteFull(w io.Writer, buf []byte) (int, error) {
	var n int
	for n < len(buf) {
		nw, err := w.Write(buf[n:])
		if nw > 0 {
			n += nw
		}
		if err != nil {
			if isInterrupt(err) {
				continue
			}
			return n, protocol.IOError("write", err)
		}
		if nw == 0 {
			return n, protocol.IOError("write", io.ErrShortWrite)
		}
	}
	return n, nil
}

// IsClosed reports whether err is the clean end-of-stream result of ReadFull.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// ArmRead sets a read deadline d from now when the transport supports deadlines.
// A non-positive d clears the deadline.
func ArmRead(t io.Reader, d time.Duration) {
	if rd, ok := t.(readDeadliner); ok {
		_ = rd.SetReadDeadline(deadline(d))
	}
}

// ArmWrite sets a write deadline d from now when the transport supports deadlines.
func ArmWrite(t io.Writer, d time.Duration) {
	if wd, ok := t.(writeDeadliner); ok {
		_ = wd.SetWriteDeadline(deadline(d))
	}
}

func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}

func closedAt(n int) error {
	if n == 0 {
		return io.EOF
	}
	return io.ErrUnexpectedEOF
}

func isInterrupt(err error) bool {
	return errors.Is(err, syscall.EINTR)
}
