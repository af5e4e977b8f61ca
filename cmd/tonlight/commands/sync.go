package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tonlight/tonlight/config"
	"github.com/tonlight/tonlight/libs/log"
	"github.com/tonlight/tonlight/light"
)

const shutdownTimeout = 4 * time.Second

// MakeSyncCommand returns the command following the key blocks from the
// trusted one up to a given key block.
func MakeSyncCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <seqno>",
		Short: "Follow key blocks from the trusted one up to a given key block",
		Long: `Follow key blocks from the trusted one up to the key block <seqno>.

Blocks are read from the blocks directory, where header-proof stores
them. Signatures are fetched from the toncenter API when signatures_url
is set, from the blocks directory otherwise. Every key block on the way
is verified and trusted in turn.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			target, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid seqno %q: %w", args[0], err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			metrics := light.NopMetrics()
			if conf.Instrumentation.Prometheus {
				metrics = light.PrometheusMetrics(conf.Instrumentation.Namespace, "network", conf.Provider.Network)
				srv := startPrometheusServer(conf.Instrumentation.PrometheusListenAddr, logger)
				defer func() {
					sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer scancel()
					if err := srv.Shutdown(sctx); err != nil {
						logger.Error("Prometheus HTTP server Shutdown", "err", err)
					}
				}()
			}

			p, err := newProvider(conf)
			if err != nil {
				return err
			}
			c, closeStore, err := openClient(conf, logger, metrics)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeStore(); err == nil {
					err = cerr
				}
			}()

			logger.Info("Syncing", "provider", p.String(), "trusted", c.State().Seqno, "target", target)
			if err := c.Sync(ctx, p, uint32(target)); err != nil {
				return err
			}

			state := c.State()
			fmt.Fprintf(cmd.OutOrStdout(), "trusting key block #%d with %d validators\n",
				state.Seqno, state.Validators.Size())
			return nil
		},
	}
}

// startPrometheusServer serves the default registry under /metrics.
func startPrometheusServer(addr string, logger log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Prometheus HTTP server ListenAndServe", "err", err)
		}
	}()
	return srv
}
