package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/ttcp/internal/config"
	"github.com/danmuck/ttcp/internal/observability"
	"github.com/danmuck/ttcp/internal/protocol/session"
	"github.com/danmuck/ttcp/internal/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newTransmitCmd(flags *cliFlags) *cobra.Command {
	defaults := config.Default()
	cmd := &cobra.Command{
		Use:     "transmit",
		Aliases: []string{"tx", "client"},
		Short:   "Connect to a receiver and send frames",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := resolveOptions(cmd, flags, config.RoleTransmit)
			if err != nil {
				return err
			}
			_, err = runTransmit(cmd.Context(), opts, cmd.OutOrStdout())
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.host, "host", "H", defaults.Host, "receiver host")
	f.Int32VarP(&flags.length, "length", "l", defaults.Length, "payload bytes per frame")
	f.Int32VarP(&flags.number, "number", "n", defaults.Number, "number of frames")
	f.IntVar(&flags.connectAttempts, "connect-attempts", defaults.ConnectAttempts, "dial attempts before giving up")
	f.DurationVar(&flags.connectTimeout, "connect-timeout", defaults.ConnectTimeout, "per-attempt dial timeout")
	return cmd
}

// runTransmit dials the receiver and runs one transmitter session.
func runTransmit(ctx context.Context, opts config.Options, out io.Writer) (session.Stats, error) {
	rec := observability.NewRecorder(opts.Node, 0)
	adm := startAdmin(ctx, opts, rec)
	defer adm.Stop()

	cfg := opts.SessionConfig()
	cfg.ID = nextSessionID("tx")
	cfg.Observer = rec
	tx, err := session.NewTransmitter(opts.Descriptor(), cfg)
	if err != nil {
		return session.Stats{}, err
	}

	log.Info().
		Str("addr", opts.DialAddr()).
		Int32("count", opts.Number).
		Int32("length", opts.Length).
		Bool("nodelay", opts.NoDelay).
		Msg("transmitting")
	conn, err := transport.Dial(ctx, opts.DialConfig())
	if err != nil {
		return session.Stats{}, err
	}
	adm.SetReady(true)

	stats, err := tx.Run(ctx, conn)
	if err != nil {
		return stats, err
	}
	printSummary(out, session.RoleTransmitter, stats)
	return stats, nil
}

func printSummary(out io.Writer, role session.Role, stats session.Stats) {
	fmt.Fprintf(out, "%s: %d x %d bytes, %.3f MiB in %s, %.3f MiB/s\n",
		role,
		stats.Frames,
		stats.Descriptor.PayloadLength,
		stats.MiB(),
		stats.Elapsed.Round(time.Microsecond),
		stats.MiBPerSecond(),
	)
}
