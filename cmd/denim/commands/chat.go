package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"denim/internal/console"
	"denim/internal/domain"
	"denim/internal/transport"
)

// chat: wait for a peer (dialing one too with --peer) and run a session.
func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Connect to a peer and start an encrypted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := wire.Config
			log := wire.Logger
			out := cmd.OutOrStdout()

			ln, err := transport.Listen(ctx, cfg.Network.Host, cfg.Network.Port, log.Named("transport"))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Waiting for a peer on %s (control port %d)...\n", ln.Addr(), cfg.Network.Port+1)
			link, err := transport.Establish(ctx, ln, cfg.Network.Peer, log.Named("transport"))
			_ = ln.Close()
			if err != nil {
				return err
			}
			defer link.Close()

			history, err := wire.OpenHistory(link.Remote)
			if err != nil {
				return err
			}
			defer history.Close()

			con := console.New(cmd.InOrStdin(), out)
			fmt.Fprintf(out, "Connected to %s as %s. Tier: %s.\n", link.Remote, link.Role, wire.Codec.Tier())

			sessCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			g, gctx := errgroup.WithContext(sessCtx)
			g.Go(func() error { return wire.ServeMetrics(gctx) })

			sched := wire.NewScheduler(link, history, con)
			start := time.Now()
			runErr := sched.Run(sessCtx)
			cancel()
			if err := g.Wait(); err != nil {
				log.Warn("metrics server", zap.Error(err))
			}
			log.Info("session finished", zap.String("session", sched.ID()), zap.Duration("lasted", time.Since(start)))

			switch {
			case runErr == nil:
				fmt.Fprintln(out, "Session ended.")
				return nil
			case errors.Is(runErr, context.Canceled), errors.Is(runErr, domain.ErrPeerClosed):
				return nil
			case domain.IsSessionFatal(runErr):
				return fmt.Errorf("session aborted, message failed verification: %w", runErr)
			default:
				return runErr
			}
		},
	}

	f := cmd.Flags()
	f.String("host", "0.0.0.0", "address to listen on")
	f.Int("port", 9000, "data port; the control port is port+1")
	f.String("peer", "", "peer host:port to dial while waiting (give it to one side only)")
	f.String("tier", "standard", "envelope tier: standard or signed")
	f.String("sign-password", "", "password wrapping one-time signing keys (signed tier)")
	f.Duration("handshake-timeout", 10*time.Second, "bound on each key exchange step")
	f.Duration("handshake-start-timeout", 0, "bound on waiting for the peer to start a key exchange (0 = none)")
	f.Bool("history", true, "keep a message history on disk")
	f.String("metrics-listen", "", "serve Prometheus metrics on this address")

	for key, flag := range map[string]string{
		"network.host":                     "host",
		"network.port":                     "port",
		"network.peer":                     "peer",
		"security.tier":                    "tier",
		"security.sign_password":           "sign-password",
		"security.handshake_timeout":       "handshake-timeout",
		"security.handshake_start_timeout": "handshake-start-timeout",
		"history.enabled":                  "history",
		"metrics.listen":                   "metrics-listen",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}
