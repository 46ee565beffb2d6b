package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/recap-cli/credentials"
	"github.com/otherjamesbrown/recap-cli/pkg/buildinfo"
	"github.com/otherjamesbrown/recap-cli/pkg/logging"
	"github.com/otherjamesbrown/recap-cli/pkg/storage"
)

const (
	defaultMetricsAddr = "127.0.0.1:9464"
	shutdownTimeout    = 5 * time.Second
)

// NewMetricsCommand creates the metrics command group.
func NewMetricsCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Expose Prometheus metrics",
	}

	cmd.AddCommand(newMetricsServeCommand(deps))
	return cmd
}

func newMetricsServeCommand(deps *Deps) *cobra.Command {
	var (
		addr   string
		withDB bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /metrics and /version until interrupted",
		Long: `Serve Prometheus metrics on /metrics and build information on /version.

With --db the export history connection pool is reported as
recap_db_pool_*_conns gauges.

Examples:
  recap metrics serve
  recap metrics serve --addr :9464 --db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := deps.init(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if withDB {
				if !deps.Config.Database.IsConfigured() {
					return fmt.Errorf("--db needs database.url or RECAP_DATABASE_URL")
				}
				dbCfg := storage.DefaultConfig()
				dbCfg.URL = deps.Config.Database.URL
				password, err := resolveSecret(credentials.SecretDatabase)
				if err != nil {
					return fmt.Errorf("reading database password: %w", err)
				}
				dbCfg.Password = password

				pool, err := storage.Connect(ctx, dbCfg)
				if err != nil {
					return err
				}
				defer storage.Close(pool)
				if _, err := storage.RegisterPoolStatsCollector(pool, "recap", deps.Registry); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Serving metrics on http://%s/metrics\n", addr)
			return serveMetrics(ctx, addr, deps)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultMetricsAddr, "Listen address")
	cmd.Flags().BoolVar(&withDB, "db", false, "Report export history pool statistics")
	return cmd
}

// metricsHandler routes /metrics, /version and /healthz.
func metricsHandler(deps *Deps) http.Handler {
	_ = deps.Registry.Register(collectors.NewGoCollector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/version", buildinfo.Handler("recap"))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// serveMetrics runs the metrics server until ctx is done.
func serveMetrics(ctx context.Context, addr string, deps *Deps) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsHandler(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Warn("Metrics server shutdown", logging.Err(err))
		}
		return nil
	}
}
