package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/rfqscout/api"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the HTTP API that triggers scrapes and serves the CSV files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		slog.Info("rfqscout starting",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
			"mode", cfg.Server.Mode,
			"target", cfg.Scraper.TargetURL,
			"output", cfg.Output.Dir,
		)

		// A missing driver keeps the server up; health reports degraded
		// and scrape calls fail with DRIVER_UNAVAILABLE.
		a, _, err := newApp(cfg)
		if err != nil {
			return err
		}

		startTime := time.Now()
		router := api.NewRouter(ctx, api.Deps{
			Runner:    a.runner,
			Artifacts: a.sink,
			Driver:    a.driller,
		}, cfg, startTime)

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("HTTP server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("HTTP server: %w", err)
			}
		case <-ctx.Done():
			slog.Info("shutdown signal received")
		}

		// In-flight scrapes get up to the run timeout to finish and close
		// their browsers.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scraper.RunTimeout+5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server forced shutdown", "error", err)
		} else {
			slog.Info("HTTP server drained gracefully")
		}

		slog.Info("rfqscout stopped")
		return nil
	},
}
