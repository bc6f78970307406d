package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/ttcp/internal/protocol"
	"github.com/danmuck/ttcp/internal/protocol/frame"
	"github.com/danmuck/ttcp/internal/protocol/stream"
	"github.com/rs/zerolog"
)

const (
	msgIncompleteLength = "incomplete frame length"
	msgLengthMismatch   = "frame length mismatch"
	msgMissingPayload   = "missing payload"
	msgTruncatedPayload = "truncated payload"
)

// Receiver adopts the transmitter's descriptor and acknowledges every frame.
type Receiver struct {
	machine

	cfg Config

	descMu sync.Mutex
	desc   frame.Descriptor
}

func NewReceiver(cfg Config) *Receiver {
	return &Receiver{cfg: cfg.WithDefaults()}
}

// Descriptor returns the agreed session parameters; zero until the handshake completes.
func (r *Receiver) Descriptor() frame.Descriptor {
	r.descMu.Lock()
	defer r.descMu.Unlock()
	return r.desc
}

// Run reads the descriptor and answers every frame over conn, then closes conn.
// Canceling ctx closes conn, failing the blocked call with an io error.
func (r *Receiver) Run(ctx context.Context, conn stream.Transport) (Stats, error) {
	return run(ctx, &r.machine, r.cfg, RoleReceiver, conn, r.exchange)
}

func (r *Receiver) exchange(conn stream.Transport, stats *Stats, logger zerolog.Logger) error {
	stream.ArmRead(conn, r.cfg.HandshakeTimeout)
	desc, err := ReceiveDescriptor(conn, r.cfg.Limits)
	if err != nil {
		return err
	}
	stats.Descriptor = desc
	stats.BytesReceived += frame.DescriptorLen
	r.descMu.Lock()
	r.desc = desc
	r.descMu.Unlock()
	r.exchanging()
	logger.Info().
		Int32("count", desc.RepetitionCount).
		Int32("length", desc.PayloadLength).
		Msg("session descriptor received")

	buf := make([]byte, desc.PayloadLength)
	var prefix [frame.LengthPrefixLen]byte
	ack := frame.EncodeAck(desc.PayloadLength)
	for i := int32(1); i <= desc.RepetitionCount; i++ {
		stream.ArmRead(conn, r.cfg.ReadTimeout)
		n, err := stream.ReadFull(conn, prefix[:])
		stats.BytesReceived += int64(n)
		if err != nil {
			if stream.IsClosed(err) {
				return protocol.NewError(protocol.KindProtocol, "read frame", msgIncompleteLength, err)
			}
			return protocol.IOError("read frame", err)
		}
		start := time.Now()
		if length := frame.DecodeLength(prefix[:]); length != desc.PayloadLength {
			return protocol.NewError(protocol.KindProtocol, "read frame", msgLengthMismatch,
				fmt.Errorf("got %d, want %d", length, desc.PayloadLength))
		}

		stream.ArmRead(conn, r.cfg.ReadTimeout)
		n, err = stream.ReadFull(conn, buf)
		stats.BytesReceived += int64(n)
		if err != nil {
			if stream.IsClosed(err) {
				if n == 0 {
					return protocol.NewError(protocol.KindProtocol, "read payload", msgMissingPayload, err)
				}
				return protocol.NewError(protocol.KindIO, "read payload", msgTruncatedPayload, err)
			}
			return protocol.IOError("read payload", err)
		}
		logger.Debug().Int32("iteration", i).Msg("received payload")

		stream.ArmWrite(conn, r.cfg.WriteTimeout)
		n, err = stream.WriteFull(conn, ack[:])
		stats.BytesSent += int64(n)
		if err != nil {
			return protocol.IOError("write ack", err)
		}
		logger.Debug().Int32("iteration", i).Msg("sent ack")

		stats.Frames = i
		stats.PayloadBytes += int64(desc.PayloadLength)
		r.advance(i)
		r.cfg.Observer.FrameCompleted(FrameEvent{
			SessionID: r.cfg.ID,
			Role:      RoleReceiver,
			Iteration: i,
			Bytes:     frame.LengthPrefixLen + len(buf),
			RTT:       time.Since(start),
		})
	}
	return nil
}
