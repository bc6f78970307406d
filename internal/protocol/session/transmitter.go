package session

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/ttcp/internal/protocol"
	"github.com/danmuck/ttcp/internal/protocol/frame"
	"github.com/danmuck/ttcp/internal/protocol/stream"
	"github.com/rs/zerolog"
)

const (
	msgIncompleteAck = "incomplete acknowledgement"
	msgAckMismatch   = "ack value mismatch"
)

// Transmitter sends RepetitionCount frames of PayloadLength bytes, one in flight at a time.
type Transmitter struct {
	machine

	cfg  Config
	desc frame.Descriptor
}

func NewTransmitter(desc frame.Descriptor, cfg Config) (*Transmitter, error) {
	if err := desc.Validate(frame.Limits{}); err != nil {
		return nil, err
	}
	return &Transmitter{
		cfg:  cfg.WithDefaults(),
		desc: desc,
	}, nil
}

func (t *Transmitter) Descriptor() frame.Descriptor {
	return t.desc
}

// Run performs the handshake and exchange loop over conn, then closes conn.
// Canceling ctx closes conn, failing the blocked call with an io error.
func (t *Transmitter) Run(ctx context.Context, conn stream.Transport) (Stats, error) {
	return run(ctx, &t.machine, t.cfg, RoleTransmitter, conn, t.exchange)
}

func (t *Transmitter) exchange(conn stream.Transport, stats *Stats, logger zerolog.Logger) error {
	desc := t.desc
	stats.Descriptor = desc

	stream.ArmWrite(conn, t.cfg.HandshakeTimeout)
	if err := SendDescriptor(conn, desc); err != nil {
		return err
	}
	stats.BytesSent += frame.DescriptorLen
	t.exchanging()
	logger.Info().
		Int32("count", desc.RepetitionCount).
		Int32("length", desc.PayloadLength).
		Str("total", formatMiB(float64(desc.TotalPayloadBytes())/mebibyte)).
		Msg("session descriptor sent")

	payload, err := frame.NewPayload(desc.PayloadLength)
	if err != nil {
		return protocol.NewError(protocol.KindProtocol, "build frame", msgInvalidDescriptor, err)
	}

	var ack [frame.AckLen]byte
	for i := int32(1); i <= desc.RepetitionCount; i++ {
		start := time.Now()
		stream.ArmWrite(conn, t.cfg.WriteTimeout)
		n, err := stream.WriteFull(conn, payload)
		stats.BytesSent += int64(n)
		if err != nil {
			return protocol.IOError("write frame", err)
		}
		logger.Debug().Int32("iteration", i).Msg("payload sent, waiting for ack")

		stream.ArmRead(conn, t.cfg.ReadTimeout)
		n, err = stream.ReadFull(conn, ack[:])
		stats.BytesReceived += int64(n)
		if err != nil {
			if stream.IsClosed(err) {
				return protocol.NewError(protocol.KindProtocol, "read ack", msgIncompleteAck, err)
			}
			return protocol.IOError("read ack", err)
		}
		if v := frame.DecodeAck(ack[:]); v != desc.PayloadLength {
			return protocol.NewError(protocol.KindProtocol, "read ack", msgAckMismatch,
				fmt.Errorf("got %d, want %d", v, desc.PayloadLength))
		}

		stats.Frames = i
		stats.PayloadBytes += int64(desc.PayloadLength)
		t.advance(i)
		t.cfg.Observer.FrameCompleted(FrameEvent{
			SessionID: t.cfg.ID,
			Role:      RoleTransmitter,
			Iteration: i,
			Bytes:     len(payload),
			RTT:       time.Since(start),
		})
		logger.Debug().Int32("iteration", i).Msg("received ack")
	}
	return nil
}
