package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	DescriptorLen   = 8
	LengthPrefixLen = 4
	AckLen          = 4
)

const pattern = "0123456789ABCDEF"

var ErrInvalidDescriptor = errors.New("frame: invalid session descriptor")

// Descriptor is the session handshake: how many frames, and how large each one is.
type Descriptor struct {
	RepetitionCount int32
	PayloadLength   int32
}

// Limits constrains what a receiver will agree to allocate.
type Limits struct {
	MaxPayloadBytes int32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 64 * 1024 * 1024,
	}
}

// Validate checks descriptor invariants against limits. A zero MaxPayloadBytes
// accepts any positive length.
func (d Descriptor) Validate(limits Limits) error {
	if d.RepetitionCount < 1 {
		return fmt.Errorf("%w: repetition count %d", ErrInvalidDescriptor, d.RepetitionCount)
	}
	if d.PayloadLength < 1 {
		return fmt.Errorf("%w: payload length %d", ErrInvalidDescriptor, d.PayloadLength)
	}
	if limits.MaxPayloadBytes > 0 && d.PayloadLength > limits.MaxPayloadBytes {
		return fmt.Errorf("%w: payload length %d exceeds %d", ErrInvalidDescriptor, d.PayloadLength, limits.MaxPayloadBytes)
	}
	return nil
}

// FrameLen is the on-wire size of one payload frame, prefix included.
func (d Descriptor) FrameLen() int {
	return LengthPrefixLen + int(d.PayloadLength)
}

// TotalPayloadBytes is the payload volume of the whole session.
func (d Descriptor) TotalPayloadBytes() int64 {
	return int64(d.RepetitionCount) * int64(d.PayloadLength)
}

func EncodeDescriptor(d Descriptor) [DescriptorLen]byte {
	var b [DescriptorLen]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(d.RepetitionCount))
	binary.BigEndian.PutUint32(b[4:8], uint32(d.PayloadLength))
	return b
}

// DecodeDescriptor expects exactly DescriptorLen bytes.
func DecodeDescriptor(b []byte) Descriptor {
	return Descriptor{
		RepetitionCount: int32(binary.BigEndian.Uint32(b[0:4])),
		PayloadLength:   int32(binary.BigEndian.Uint32(b[4:8])),
	}
}

func PutLengthPrefix(b []byte, length int32) {
	binary.BigEndian.PutUint32(b[0:LengthPrefixLen], uint32(length))
}

// DecodeLength expects exactly LengthPrefixLen bytes.
func DecodeLength(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b[0:LengthPrefixLen]))
}

func EncodeAck(v int32) [AckLen]byte {
	var b [AckLen]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return b
}

// DecodeAck expects exactly AckLen bytes.
func DecodeAck(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b[0:AckLen]))
}

// FillPattern writes the cycling hex digit pattern into data.
func FillPattern(data []byte) {
	for i := range data {
		data[i] = pattern[i%len(pattern)]
	}
}

// NewPayload allocates one reusable frame: length prefix followed by length pattern bytes.
func NewPayload(length int32) ([]byte, error) {
	if length < 1 || int64(length) > math.MaxInt32-LengthPrefixLen {
		return nil, fmt.Errorf("%w: payload length %d", ErrInvalidDescriptor, length)
	}
	buf := make([]byte, LengthPrefixLen+int(length))
	PutLengthPrefix(buf, length)
	FillPattern(buf[LengthPrefixLen:])
	return buf, nil
}
