package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/ttcp/internal/config"
	"github.com/spf13/cobra"
)

// cliFlags mirrors config.Options; only flags the user set override the file.
type cliFlags struct {
	configPath string

	node             string
	host             string
	bind             string
	port             int
	length           int32
	number           int32
	noDelay          bool
	once             bool
	connectAttempts  int
	connectTimeout   time.Duration
	handshakeTimeout time.Duration
	readTimeout      time.Duration
	writeTimeout     time.Duration
	maxPayload       int32
	adminAddr        string
	corsOrigins      []string
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}
	defaults := config.Default()

	root := &cobra.Command{
		Use:   "ttcp",
		Short: "Measure TCP throughput over a single connection",
		Long: `ttcp moves a fixed number of equally sized payload frames over one TCP
connection. The transmitter announces count and length, sends each frame and
waits for the receiver to acknowledge it before sending the next.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "TOML config file")
	pf.StringVar(&flags.node, "node", defaults.Node, "node label for logs and metrics")
	pf.IntVarP(&flags.port, "port", "p", defaults.Port, "TCP port")
	pf.BoolVarP(&flags.noDelay, "nodelay", "D", defaults.NoDelay, "set TCP_NODELAY")
	pf.DurationVar(&flags.handshakeTimeout, "handshake-timeout", defaults.HandshakeTimeout, "deadline for the session descriptor (0 disables)")
	pf.DurationVar(&flags.readTimeout, "read-timeout", defaults.ReadTimeout, "per-read deadline (0 disables)")
	pf.DurationVar(&flags.writeTimeout, "write-timeout", defaults.WriteTimeout, "per-write deadline (0 disables)")
	pf.StringVar(&flags.adminAddr, "admin-addr", defaults.AdminAddr, "serve /health, /ready, /metrics and /sessions on this address")
	pf.StringSliceVar(&flags.corsOrigins, "cors-origin", nil, "allowed CORS origin for the admin server (repeatable)")

	root.AddCommand(
		newTransmitCmd(flags),
		newReceiveCmd(flags),
		newConfigCmd(flags),
	)
	return root
}

// resolveOptions layers defaults, the config file and changed flags, then validates for role.
func resolveOptions(cmd *cobra.Command, flags *cliFlags, role string) (config.Options, error) {
	opts := config.Default()
	if path := strings.TrimSpace(flags.configPath); path != "" {
		var err error
		if opts, err = config.Load(path); err != nil {
			return config.Options{}, err
		}
	}
	if role != "" {
		opts.Role = role
	}

	changed := cmd.Flags().Changed
	if changed("node") {
		opts.Node = strings.TrimSpace(flags.node)
	}
	if changed("host") {
		opts.Host = strings.TrimSpace(flags.host)
	}
	if changed("bind") {
		opts.Bind = strings.TrimSpace(flags.bind)
	}
	if changed("port") {
		opts.Port = flags.port
	}
	if changed("length") {
		opts.Length = flags.length
	}
	if changed("number") {
		opts.Number = flags.number
	}
	if changed("nodelay") {
		opts.NoDelay = flags.noDelay
	}
	if changed("once") {
		opts.Once = flags.once
	}
	if changed("connect-attempts") {
		opts.ConnectAttempts = flags.connectAttempts
	}
	if changed("connect-timeout") {
		opts.ConnectTimeout = flags.connectTimeout
	}
	if changed("handshake-timeout") {
		opts.HandshakeTimeout = flags.handshakeTimeout
	}
	if changed("read-timeout") {
		opts.ReadTimeout = flags.readTimeout
	}
	if changed("write-timeout") {
		opts.WriteTimeout = flags.writeTimeout
	}
	if changed("max-payload") {
		opts.MaxPayload = flags.maxPayload
	}
	if changed("admin-addr") {
		opts.AdminAddr = strings.TrimSpace(flags.adminAddr)
	}
	if changed("cors-origin") {
		opts.CORSOrigins = flags.corsOrigins
	}

	if role == "" {
		return opts, nil
	}
	if err := opts.Validate(); err != nil {
		return config.Options{}, fmt.Errorf("invalid options: %w", err)
	}
	return opts, nil
}
