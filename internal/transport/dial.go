package transport

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/ttcp/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrAddressRequired = errors.New("transport: address required")

// DialConfig describes how the transmitter reaches the receiver.
type DialConfig struct {
	Address        string
	ConnectTimeout time.Duration

	// MaxAttempts <= 1 dials once.
	MaxAttempts int
	Backoff     BackoffConfig
	NoDelay     bool
}

func DefaultDialConfig() DialConfig {
	return DialConfig{
		ConnectTimeout: 5 * time.Second,
		MaxAttempts:    1,
		Backoff:        DefaultBackoff(),
		NoDelay:        true,
	}
}

// Dial resolves and connects to cfg.Address. Every failure is a connection error.
func Dial(ctx context.Context, cfg DialConfig) (net.Conn, error) {
	addr := strings.TrimSpace(cfg.Address)
	if addr == "" {
		return nil, protocol.ConnectionError("dial", ErrAddressRequired)
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var attempt int
	for {
		attempt++
		conn, err := dialOnce(ctx, addr, cfg)
		if err == nil {
			log.Info().Str("addr", addr).Str("remote", conn.RemoteAddr().String()).Int("attempt", attempt).Msg("connected")
			return conn, nil
		}
		log.Warn().Str("addr", addr).Int("attempt", attempt).Err(err).Msg("dial failed")
		if attempt >= cfg.MaxAttempts || ctx.Err() != nil {
			return nil, protocol.ConnectionError("dial "+addr, err)
		}
		if err := sleepBackoff(ctx, cfg.Backoff, attempt, rng); err != nil {
			return nil, protocol.ConnectionError("dial "+addr, err)
		}
	}
}

func dialOnce(ctx context.Context, addr string, cfg DialConfig) (net.Conn, error) {
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if err := applyNoDelay(conn, cfg.NoDelay); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func sleepBackoff(ctx context.Context, cfg BackoffConfig, attempt int, rng *rand.Rand) error {
	timer := time.NewTimer(NextBackoffDelay(cfg, attempt, rng))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func applyNoDelay(conn net.Conn, noDelay bool) error {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return tcp.SetNoDelay(noDelay)
}

// Address joins host and port the way net.Dial expects.
func Address(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))
}
