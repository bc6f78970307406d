package session

import (
	"context"
	"net"
	"time"

	"github.com/danmuck/ttcp/internal/protocol"
	"github.com/danmuck/ttcp/internal/protocol/stream"
	"github.com/rs/zerolog"
)

type remoteAddresser interface {
	RemoteAddr() net.Addr
}

// exchangeFunc runs the handshake and loop for one role, filling stats as it goes.
type exchangeFunc func(conn stream.Transport, stats *Stats, logger zerolog.Logger) error

// run owns the transport for the whole session: it closes it when ctx is done,
// after the loop completes, and on every error path.
func run(ctx context.Context, m *machine, cfg Config, role Role, conn stream.Transport, exchange exchangeFunc) (Stats, error) {
	if err := m.begin(); err != nil {
		return Stats{}, err
	}
	remote := remoteOf(conn)
	logger := cfg.Logger.With().
		Str("session", cfg.ID).
		Str("role", role.String()).
		Str("remote", remote).
		Logger()
	cfg.Observer.SessionStarted(cfg.ID, role)

	stats := Stats{Started: time.Now()}
	var err error
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = protocol.IOError("session", ctxErr)
	} else {
		stop := context.AfterFunc(ctx, func() {
			_ = conn.Close()
		})
		err = exchange(conn, &stats, logger)
		stop()
	}
	stats.Elapsed = time.Since(stats.Started)

	if cerr := conn.Close(); cerr != nil && err == nil {
		logger.Debug().Err(cerr).Msg("transport close")
	}
	m.close(err)
	cfg.Observer.SessionClosed(Result{
		SessionID: cfg.ID,
		Role:      role,
		Remote:    remote,
		Stats:     stats,
		Err:       err,
	})

	if err != nil {
		logger.Error().
			Err(err).
			Str("kind", protocol.KindOf(err).String()).
			Int32("frames", stats.Frames).
			Bool("canceled", ctx.Err() != nil).
			Msg("session aborted")
		return stats, err
	}
	logger.Info().
		Int32("frames", stats.Frames).
		Int64("payload_bytes", stats.PayloadBytes).
		Str("total", formatMiB(stats.MiB())).
		Dur("elapsed", stats.Elapsed).
		Float64("mib_per_sec", stats.MiBPerSecond()).
		Msg("session complete")
	return stats, nil
}

func remoteOf(conn stream.Transport) string {
	if ra, ok := conn.(remoteAddresser); ok && ra.RemoteAddr() != nil {
		return ra.RemoteAddr().String()
	}
	return ""
}
