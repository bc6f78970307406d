package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/ttcp/internal/protocol/frame"
	"github.com/danmuck/ttcp/internal/protocol/session"
	"github.com/danmuck/ttcp/internal/transport"
)

const (
	RoleTransmit = "transmit"
	RoleReceive  = "receive"

	DefaultPort   = 12345
	DefaultLength = 1000
	DefaultNumber = 10
	DefaultHost   = "localhost"
)

var ErrInvalid = errors.New("config: invalid")

// Options is everything a ttcp process needs to run one role.
type Options struct {
	Node string
	Role string

	// Host is the receiver address the transmitter dials; Bind is where the receiver listens.
	Host string
	Bind string
	Port int

	Length int32
	Number int32

	NoDelay bool
	Once    bool

	ConnectAttempts  int
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration

	// MaxPayload is the receiver's limit on announced lengths; 0 accepts any length.
	MaxPayload int32

	AdminAddr   string
	CORSOrigins []string
}

func Default() Options {
	sess := session.DefaultConfig()
	dial := transport.DefaultDialConfig()
	return Options{
		Node:             "ttcp",
		Host:             DefaultHost,
		Port:             DefaultPort,
		Length:           DefaultLength,
		Number:           DefaultNumber,
		NoDelay:          true,
		ConnectAttempts:  dial.MaxAttempts,
		ConnectTimeout:   dial.ConnectTimeout,
		HandshakeTimeout: sess.HandshakeTimeout,
		ReadTimeout:      sess.ReadTimeout,
		WriteTimeout:     sess.WriteTimeout,
		MaxPayload:       sess.Limits.MaxPayloadBytes,
	}
}

// fileConfig is the on-disk shape. Durations are Go duration strings.
type fileConfig struct {
	Node             string   `toml:"node"`
	Role             string   `toml:"role"`
	Host             string   `toml:"host"`
	Bind             string   `toml:"bind"`
	Port             int64    `toml:"port"`
	Length           int64    `toml:"length"`
	Number           int64    `toml:"number"`
	NoDelay          bool     `toml:"nodelay"`
	Once             bool     `toml:"once"`
	ConnectAttempts  int      `toml:"connect_attempts"`
	ConnectTimeout   string   `toml:"connect_timeout"`
	HandshakeTimeout string   `toml:"handshake_timeout"`
	ReadTimeout      string   `toml:"read_timeout"`
	WriteTimeout     string   `toml:"write_timeout"`
	MaxPayload       int64    `toml:"max_payload"`
	AdminAddr        string   `toml:"admin_addr"`
	CORSOrigins      []string `toml:"cors_origins"`
}

// Load overlays the keys present in the TOML file at path onto Default().
func Load(path string) (Options, error) {
	return LoadOver(path, Default())
}

// LoadOver overlays the keys present in the file onto base.
func LoadOver(path string, base Options) (Options, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Options{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Options{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	cfg := base
	if meta.IsDefined("node") {
		cfg.Node = strings.TrimSpace(raw.Node)
	}
	if meta.IsDefined("role") {
		cfg.Role = strings.ToLower(strings.TrimSpace(raw.Role))
	}
	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("bind") {
		cfg.Bind = strings.TrimSpace(raw.Bind)
	}
	if meta.IsDefined("port") {
		if raw.Port < 1 || raw.Port > math.MaxUint16 {
			return Options{}, fmt.Errorf("%w: port %d out of range", ErrInvalid, raw.Port)
		}
		cfg.Port = int(raw.Port)
	}
	if meta.IsDefined("length") {
		if cfg.Length, err = positiveInt32("length", raw.Length); err != nil {
			return Options{}, err
		}
	}
	if meta.IsDefined("number") {
		if cfg.Number, err = positiveInt32("number", raw.Number); err != nil {
			return Options{}, err
		}
	}
	if meta.IsDefined("max_payload") {
		if raw.MaxPayload < 0 || raw.MaxPayload > math.MaxInt32 {
			return Options{}, fmt.Errorf("%w: max_payload %d out of range [0, %d]", ErrInvalid, raw.MaxPayload, math.MaxInt32)
		}
		cfg.MaxPayload = int32(raw.MaxPayload)
	}
	if meta.IsDefined("nodelay") {
		cfg.NoDelay = raw.NoDelay
	}
	if meta.IsDefined("once") {
		cfg.Once = raw.Once
	}
	if meta.IsDefined("connect_attempts") {
		cfg.ConnectAttempts = raw.ConnectAttempts
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.HandshakeTimeout},
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Options{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeList(raw.CORSOrigins)
	}
	return cfg, nil
}

// Validate checks the options needed by the selected role.
func (o Options) Validate() error {
	switch o.Role {
	case RoleTransmit:
		if strings.TrimSpace(o.Host) == "" {
			return fmt.Errorf("%w: host is required to transmit", ErrInvalid)
		}
		if o.ConnectAttempts < 1 {
			return fmt.Errorf("%w: connect_attempts must be at least 1", ErrInvalid)
		}
	case RoleReceive:
	case "":
		return fmt.Errorf("%w: role is required", ErrInvalid)
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalid, o.Role)
	}
	if o.Port < 1 || o.Port > math.MaxUint16 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, o.Port)
	}
	if o.Length < 1 {
		return fmt.Errorf("%w: length must be at least 1", ErrInvalid)
	}
	if o.Number < 1 {
		return fmt.Errorf("%w: number must be at least 1", ErrInvalid)
	}
	// max_payload bounds what a receiver accepts; a transmitter may announce more.
	if o.MaxPayload < 0 {
		return fmt.Errorf("%w: max_payload must not be negative", ErrInvalid)
	}
	for _, d := range []time.Duration{o.ConnectTimeout, o.HandshakeTimeout, o.ReadTimeout, o.WriteTimeout} {
		if d < 0 {
			return fmt.Errorf("%w: negative timeout %v", ErrInvalid, d)
		}
	}
	return nil
}

func (o Options) Descriptor() frame.Descriptor {
	return frame.Descriptor{
		RepetitionCount: o.Number,
		PayloadLength:   o.Length,
	}
}

// SessionConfig maps timeouts and limits; ID, Logger and Observer are left to the caller.
func (o Options) SessionConfig() session.Config {
	return session.Config{
		HandshakeTimeout: o.HandshakeTimeout,
		ReadTimeout:      o.ReadTimeout,
		WriteTimeout:     o.WriteTimeout,
		Limits:           frame.Limits{MaxPayloadBytes: o.MaxPayload},
	}
}

func (o Options) DialConfig() transport.DialConfig {
	cfg := transport.DefaultDialConfig()
	cfg.Address = o.DialAddr()
	cfg.ConnectTimeout = o.ConnectTimeout
	cfg.MaxAttempts = o.ConnectAttempts
	cfg.NoDelay = o.NoDelay
	return cfg
}

func (o Options) ServerConfig() transport.ServerConfig {
	return transport.ServerConfig{
		NoDelay: o.NoDelay,
		Once:    o.Once,
	}
}

func (o Options) DialAddr() string {
	return transport.Address(o.Host, uint16(o.Port))
}

func (o Options) ListenAddr() string {
	return transport.Address(o.Bind, uint16(o.Port))
}

func positiveInt32(key string, v int64) (int32, error) {
	if v < 1 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s %d out of range [1, %d]", ErrInvalid, key, v, math.MaxInt32)
	}
	return int32(v), nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
