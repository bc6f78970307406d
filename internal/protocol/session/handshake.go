package session

import (
	"errors"
	"io"

	"github.com/danmuck/ttcp/internal/protocol"
	"github.com/danmuck/ttcp/internal/protocol/frame"
	"github.com/danmuck/ttcp/internal/protocol/stream"
)

const (
	msgIncompleteDescriptor = "incomplete session descriptor"
	msgInvalidDescriptor    = "invalid session descriptor"
)

// SendDescriptor writes the 8-byte session descriptor. A peer that stops accepting
// bytes mid-descriptor is a protocol error; a transport failure is an io error.
func SendDescriptor(w io.Writer, d frame.Descriptor) error {
	const op = "send descriptor"
	if err := d.Validate(frame.Limits{}); err != nil {
		return protocol.NewError(protocol.KindProtocol, op, msgInvalidDescriptor, err)
	}
	b := frame.EncodeDescriptor(d)
	if _, err := stream.WriteFull(w, b[:]); err != nil {
		if errors.Is(err, io.ErrShortWrite) {
			return protocol.NewError(protocol.KindProtocol, op, msgIncompleteDescriptor, err)
		}
		return protocol.IOError(op, err)
	}
	return nil
}

// ReceiveDescriptor reads and validates the 8-byte session descriptor.
func ReceiveDescriptor(r io.Reader, limits frame.Limits) (frame.Descriptor, error) {
	const op = "receive descriptor"
	var b [frame.DescriptorLen]byte
	if _, err := stream.ReadFull(r, b[:]); err != nil {
		if stream.IsClosed(err) {
			return frame.Descriptor{}, protocol.NewError(protocol.KindProtocol, op, msgIncompleteDescriptor, err)
		}
		// A reset or deadline mid-descriptor is a transport failure, not a short descriptor.
		return frame.Descriptor{}, protocol.IOError(op, err)
	}
	d := frame.DecodeDescriptor(b[:])
	if err := d.Validate(limits); err != nil {
		return frame.Descriptor{}, protocol.NewError(protocol.KindProtocol, op, msgInvalidDescriptor, err)
	}
	return d, nil
}
