package frame

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestDescriptorRoundTrip(t *testing.T) {
	cases := []Descriptor{
		{RepetitionCount: 1, PayloadLength: 1},
		{RepetitionCount: 10, PayloadLength: 1000},
		{RepetitionCount: math.MaxInt32, PayloadLength: math.MaxInt32},
	}
	for _, in := range cases {
		b := EncodeDescriptor(in)
		out := DecodeDescriptor(b[:])
		if out != in {
			t.Fatalf("descriptor mismatch: got=%+v want=%+v", out, in)
		}
	}
}

func TestDescriptorWireLayout(t *testing.T) {
	b := EncodeDescriptor(Descriptor{RepetitionCount: 2, PayloadLength: 4})
	want := []byte{0, 0, 0, 2, 0, 0, 0, 4}
	if !bytes.Equal(b[:], want) {
		t.Fatalf("unexpected layout: %v", b)
	}
}

func TestDescriptorValidate(t *testing.T) {
	limits := Limits{MaxPayloadBytes: 1024}
	if err := (Descriptor{RepetitionCount: 1, PayloadLength: 1024}).Validate(limits); err != nil {
		t.Fatalf("expected valid descriptor: %v", err)
	}
	bad := []Descriptor{
		{RepetitionCount: 0, PayloadLength: 1},
		{RepetitionCount: -3, PayloadLength: 1},
		{RepetitionCount: 1, PayloadLength: 0},
		{RepetitionCount: 1, PayloadLength: -1},
		{RepetitionCount: 1, PayloadLength: 1025},
	}
	for _, d := range bad {
		if err := d.Validate(limits); !errors.Is(err, ErrInvalidDescriptor) {
			t.Fatalf("expected ErrInvalidDescriptor for %+v, got %v", d, err)
		}
	}
	if err := (Descriptor{RepetitionCount: 1, PayloadLength: math.MaxInt32}).Validate(Limits{}); err != nil {
		t.Fatalf("zero limits should accept any positive length: %v", err)
	}
}

func TestAckRoundTrip(t *testing.T) {
	for _, v := range []int32{1, 4, 1000, math.MaxInt32, -1} {
		b := EncodeAck(v)
		if got := DecodeAck(b[:]); got != v {
			t.Fatalf("ack mismatch: got=%d want=%d", got, v)
		}
	}
}

func TestNewPayloadPattern(t *testing.T) {
	buf, err := NewPayload(20)
	if err != nil {
		t.Fatalf("new payload: %v", err)
	}
	if len(buf) != LengthPrefixLen+20 {
		t.Fatalf("unexpected frame size: %d", len(buf))
	}
	if DecodeLength(buf[:LengthPrefixLen]) != 20 {
		t.Fatalf("unexpected prefix: %v", buf[:LengthPrefixLen])
	}
	if got := string(buf[LengthPrefixLen:]); got != "0123456789ABCDEF0123" {
		t.Fatalf("unexpected pattern: %q", got)
	}
}

func TestNewPayloadRejectsNonPositive(t *testing.T) {
	for _, n := range []int32{0, -5} {
		if _, err := NewPayload(n); !errors.Is(err, ErrInvalidDescriptor) {
			t.Fatalf("expected error for length %d, got %v", n, err)
		}
	}
}

func TestDescriptorSizes(t *testing.T) {
	d := Descriptor{RepetitionCount: 10, PayloadLength: 1000}
	if d.FrameLen() != 1004 {
		t.Fatalf("unexpected frame len: %d", d.FrameLen())
	}
	if d.TotalPayloadBytes() != 10000 {
		t.Fatalf("unexpected total: %d", d.TotalPayloadBytes())
	}
}
