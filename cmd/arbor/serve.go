package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	arborhttp "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the ticket routes of the configured backend and live backlog sessions
over HTTP, with an SSE stream per session and Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, sigCtx, err := setup(cmd)
		if err != nil {
			return err
		}
		defer sigCtx.Cancel()
		defer app.Close()

		if cmd.Flags().Changed("addr") {
			app.Config.Server.Addr, _ = cmd.Flags().GetString("addr")
		}

		opts := []arborhttp.Option{
			arborhttp.WithSessions(app.Sessions),
			arborhttp.WithLogger(app.Logger),
		}
		if app.Config.Server.Metrics {
			opts = append(opts, arborhttp.WithMetrics(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))
		}

		g, ctx := errgroup.WithContext(sigCtx)

		srv := &http.Server{
			Addr:              app.Config.Server.Addr,
			Handler:           arborhttp.NewHandler(app.Backend, opts...),
			ReadHeaderTimeout: 10 * time.Second,
			// Request contexts end with ctx so that SSE streams let Shutdown finish.
			BaseContext: func(net.Listener) context.Context { return ctx },
		}

		g.Go(func() error {
			app.Logger.Info("HTTP server listening", "address", srv.Addr, "backend", app.Config.Backend.Kind)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			app.Logger.Info("Shutdown signal received, stopping HTTP server", "signal", sigCtx.Signal())

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			return err
		}
		app.Logger.Info("HTTP server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default from config, :8080)")
}
