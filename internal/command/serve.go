package command

import (
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/stolasapp/gatekeep/internal/app"
	"github.com/stolasapp/gatekeep/internal/observability"
	"github.com/stolasapp/gatekeep/internal/server"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the registration, login and restricted API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			b, err := loadBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := b.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			metrics := observability.NewMetrics()
			web := app.New(b.cfg, b.logger, b.authority, b.store, b.hasher, metrics)

			grp, ctx := errgroup.WithContext(cmd.Context())
			grp.Go(func() error {
				return b.authority.Sweep(ctx, b.cfg.Session.SweepInterval)
			})

			if _, err = server.Start(ctx, grp, b.logger, "app", b.cfg.WebAddress, web,
				server.WithWriteTimeout(writeTimeout(b.cfg.BcryptCost)),
			); err != nil {
				return err
			}
			if _, err = server.Start(ctx, grp, b.logger, "metrics", b.cfg.MetricsAddress, metrics.Handler()); err != nil {
				return err
			}

			b.logger.DebugContext(ctx, "session store selected",
				slog.String("store", string(b.cfg.Session.Store)),
			)
			return grp.Wait()
		},
	}
}

// hashQueueDepth is how many hashes a request may wait behind before its
// write window runs out.
const hashQueueDepth = 16

// writeTimeout extends [server.WriteTimeout] by the time to drain a queue of
// hashes at cost. Each bcrypt cost step doubles the work, from roughly 1ms at
// [bcrypt.MinCost].
func writeTimeout(cost int) time.Duration {
	perHash := time.Millisecond << max(cost-bcrypt.MinCost, 0)
	return server.WriteTimeout + hashQueueDepth*perHash
}
