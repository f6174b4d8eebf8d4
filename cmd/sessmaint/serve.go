package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aatumaykin/sessmaint/internal/logger"
	"github.com/aatumaykin/sessmaint/internal/maintain"
	"github.com/aatumaykin/sessmaint/internal/metrics"
	"github.com/aatumaykin/sessmaint/internal/schedule"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run cleanup passes on a cron schedule",
	Long: `Serve keeps running and executes a cleanup pass on the configured
cron schedule. When metrics are enabled a prometheus endpoint is exposed.
The process stops gracefully on SIGINT/SIGTERM, letting an in-flight pass
finish first.`,
	Run: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) {
	cfg, log, err := loadSetup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if !cfg.Schedule.Enabled {
		fmt.Fprintln(os.Stderr, "schedule.enabled is false; enable it in the config to use serve")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New("sessmaint", nil)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			log.Info("metrics endpoint listening", logger.Field{Key: "addr", Value: cfg.Metrics.ListenAddr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics endpoint failed", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	manager := maintain.New(maintain.OptionsFromConfig(cfg), log, m)
	scheduler := schedule.New(cfg.Schedule.Cron, manager, log)
	if err := scheduler.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Scheduler failed: %v\n", err)
		os.Exit(1)
	}
}
