package main

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/danmuck/ttcp/internal/config"
	"github.com/danmuck/ttcp/internal/observability"
	"github.com/danmuck/ttcp/internal/protocol/session"
	"github.com/danmuck/ttcp/internal/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newReceiveCmd(flags *cliFlags) *cobra.Command {
	defaults := config.Default()
	cmd := &cobra.Command{
		Use:     "receive",
		Aliases: []string{"rx", "server"},
		Short:   "Listen for transmitters and acknowledge their frames",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := resolveOptions(cmd, flags, config.RoleReceive)
			if err != nil {
				return err
			}
			ln, err := transport.Listen(opts.ListenAddr())
			if err != nil {
				return err
			}
			return runReceive(cmd.Context(), opts, ln, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.bind, "bind", "b", defaults.Bind, "listen address (empty binds all interfaces)")
	f.BoolVar(&flags.once, "once", defaults.Once, "exit after the first session")
	f.Int32Var(&flags.maxPayload, "max-payload", defaults.MaxPayload, "largest payload length a transmitter may announce (0 accepts any)")
	return cmd
}

// runReceive serves sessions on ln until ctx is done. In once mode it returns the
// error of the single session it ran.
func runReceive(ctx context.Context, opts config.Options, ln net.Listener, out io.Writer) error {
	rec := observability.NewRecorder(opts.Node, 0)
	adm := startAdmin(ctx, opts, rec)
	defer adm.Stop()

	srv := transport.NewServer(opts.ServerConfig())
	adm.AttachConns(srv)
	adm.SetReady(true)

	var (
		outMu   sync.Mutex
		lastErr error
	)
	err := srv.Serve(ctx, ln, func(ctx context.Context, conn net.Conn) {
		cfg := opts.SessionConfig()
		cfg.ID = nextSessionID("rx")
		cfg.Observer = rec
		stats, err := session.NewReceiver(cfg).Run(ctx, conn)

		outMu.Lock()
		defer outMu.Unlock()
		lastErr = err
		if err != nil {
			return
		}
		printSummary(out, session.RoleReceiver, stats)
	})
	if err != nil {
		return err
	}
	if opts.Once {
		return lastErr
	}
	log.Info().Int64("sessions", srv.Accepted()).Msg("receiver stopped")
	return nil
}
