package session

import (
	"time"

	"github.com/danmuck/ttcp/internal/protocol/frame"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config defines per-session timeouts, limits and hooks.
type Config struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	Limits           frame.Limits

	// ID labels the session in logs and observer callbacks.
	ID       string
	Logger   *zerolog.Logger
	Observer Observer
}

// DefaultConfig returns the timeouts used by the CLI when nothing is configured.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     15 * time.Second,
		Limits:           frame.DefaultLimits(),
	}
}

// WithDefaults fills unset hooks. Zero timeouts stay zero and disable deadlines.
func (c Config) WithDefaults() Config {
	if c.Logger == nil {
		l := log.Logger
		c.Logger = &l
	}
	if c.Observer == nil {
		c.Observer = NopObserver{}
	}
	return c
}
