package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/KilimcininKorOglu/obtree/internal/config"
	"github.com/KilimcininKorOglu/obtree/internal/storage/engine"
)

var metricsCommand = &cli.Command{
	Name:  "metrics",
	Usage: "Prometheus metrics",
	Subcommands: []*cli.Command{
		{
			Name:  "serve",
			Usage: "open the database and serve its metrics until interrupted",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "addr",
					Usage:   "listen address (overrides metrics.address)",
					EnvVars: []string{"OBTREE_METRICS_ADDR"},
				},
			},
			Action: runMetricsServe,
		},
	},
}

func metricsHandler(db *engine.DB) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Verify(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintln(w, "ok")
	})
	return mux
}

func runMetricsServe(cctx *cli.Context) error {
	cfg, err := loadConfig(cctx)
	if err != nil {
		return err
	}
	addr := cfg.Metrics.Address
	if cctx.IsSet("addr") {
		addr = cctx.String("addr")
	}
	if addr == "" {
		addr = config.DefaultConfig().Metrics.Address
	}

	logger := newLogger(cfg).WithComponent("metrics")
	db, err := engine.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsHandler(db),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("serving metrics", "addr", addr)

	select {
	case err := <-errCh:
		return errors.Wrap(err, "metrics server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
