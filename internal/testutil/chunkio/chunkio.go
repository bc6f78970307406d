// Package chunkio wraps readers and writers so tests can force short transfers,
// interrupted calls and stalled writes.
package chunkio

import (
	"io"
	"syscall"
)

// Reader hands out at most Chunk bytes per Read. The first Interrupts calls fail
// with EINTR before any data is delivered, alternating with real reads.
type Reader struct {
	R          io.Reader
	Chunk      int
	Interrupts int

	Calls int
	flip  bool
}

func (r *Reader) Read(p []byte) (int, error) {
	r.Calls++
	if r.Interrupts > 0 && !r.flip {
		r.Interrupts--
		r.flip = true
		return 0, syscall.EINTR
	}
	r.flip = false
	if r.Chunk > 0 && len(p) > r.Chunk {
		p = p[:r.Chunk]
	}
	return r.R.Read(p)
}

// Writer accepts at most Chunk bytes per Write, with the same EINTR behavior as Reader.
// Once Limit bytes (when non-zero) have passed through, writes accept nothing.
type Writer struct {
	W          io.Writer
	Chunk      int
	Interrupts int
	Limit      int

	Calls   int
	written int
	flip    bool
}

func (w *Writer) Write(p []byte) (int, error) {
	w.Calls++
	if w.Interrupts > 0 && !w.flip {
		w.Interrupts--
		w.flip = true
		return 0, syscall.EINTR
	}
	w.flip = false
	if w.Limit > 0 {
		left := w.Limit - w.written
		if left <= 0 {
			return 0, nil
		}
		if len(p) > left {
			p = p[:left]
		}
	}
	if w.Chunk > 0 && len(p) > w.Chunk {
		p = p[:w.Chunk]
	}
	n, err := w.W.Write(p)
	w.written += n
	return n, err
}

// Conn joins a reader and a writer into a closable duplex stream.
type Conn struct {
	io.Reader
	io.Writer

	Closed bool
}

func (c *Conn) Close() error {
	c.Closed = true
	return nil
}

// FailReader returns Err from every Read after delivering the bytes of R.
type FailReader struct {
	R   io.Reader
	Err error
}

func (f *FailReader) Read(p []byte) (int, error) {
	n, err := f.R.Read(p)
	if n > 0 {
		return n, nil
	}
	if err == io.EOF {
		return 0, f.Err
	}
	return n, err
}
