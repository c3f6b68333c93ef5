package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telkar/fleetward"
	"github.com/telkar/fleetward/internal/logger"
)

const shutdownGrace = 5 * time.Second

func createServeCommand(gf *GlobalFlags, sf *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciler and the status HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := fleetward.LoadConfig(gf.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyServeFlags(cfg, sf)
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger.Setup(cfg.Log)
			if err := fleetward.RegisterMetricsDefault(); err != nil {
				return fmt.Errorf("register metrics: %w", err)
			}

			slog.Info("===== fleetward is starting =====", "hosts", len(cfg.Hosts), "listen", cfg.Server.Listen)

			m := fleetward.New(cfg)
			if cfg.HistoryDSN != "" {
				sink, err := fleetward.NewHistorySink(cfg.HistoryDSN)
				if err != nil {
					return fmt.Errorf("history sink: %w", err)
				}
				defer func() { _ = sink.Close() }()
				m.SetHistorySink(sink)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := fleetward.NewHTTPServer(cfg.Server.Listen, cfg.Server.BasePath, m)
			if err != nil {
				return fmt.Errorf("status server: %w", err)
			}
			if cfg.Server.MetricsListen != "" {
				go func() {
					if err := fleetward.ServeMetrics(cfg.Server.MetricsListen); err != nil && !errors.Is(err, http.ErrServerClosed) {
						slog.Error("metrics server stopped", "err", err)
					}
				}()
			}

			err = m.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			slog.Info("shutting down, waiting for status server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("status server shutdown failed", "err", err)
			}
			slog.Info("===== fleetward has stopped =====")
			return nil
		},
	}
	cmd.Flags().StringVar(&sf.Listen, "listen", "", "status server listen address (overrides config)")
	cmd.Flags().StringVar(&sf.BasePath, "base-path", "", "base path for the status API (overrides config)")
	cmd.Flags().StringVar(&sf.MetricsListen, "metrics-listen", "", "separate listen address for /metrics (overrides config)")
	cmd.Flags().StringVar(&sf.HistoryDSN, "history-dsn", "", "audit sink DSN: sqlite://, postgres:// or clickhouse:// (overrides config)")
	return cmd
}

func applyServeFlags(cfg *fleetward.Config, sf *ServeFlags) {
	if sf.Listen != "" {
		cfg.Server.Listen = sf.Listen
	}
	if sf.BasePath != "" {
		cfg.Server.BasePath = sf.BasePath
	}
	if sf.MetricsListen != "" {
		cfg.Server.MetricsListen = sf.MetricsListen
	}
	if sf.HistoryDSN != "" {
		cfg.HistoryDSN = sf.HistoryDSN
	}
}

func createCheckCommand(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one reconciliation pass and print the summary table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := fleetward.LoadConfig(gf.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger.Setup(cfg.Log)
			if len(cfg.Hosts) == 0 {
				return errors.New("no hosts configured")
			}
			m := fleetward.New(cfg)
			m.RunPass(cmd.Context())
			fmt.Println(m.StatusTable())
			return nil
		},
	}
}
