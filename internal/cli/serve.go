package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rshade/ecojourney/internal/api"
	"github.com/rshade/ecojourney/internal/metrics"
)

func newServeCmd(opts *rootOptions, ver string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Example: `  ecojourney serve
  ecojourney serve --addr 127.0.0.1:9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := opts.config()
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Server.Addr, err)
			}
			return executeServe(ctx, cmd, opts, ver, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// executeServe serves on ln until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func executeServe(ctx context.Context, cmd *cobra.Command, opts *rootOptions, ver string, ln net.Listener) error {
	cfg := opts.config()
	m := metrics.New(true)

	svc, cleanup, err := buildService(cmd.Context(), cfg, m)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer func() {
		if cerr := cleanup.Close(); cerr != nil {
			opts.logger.Warn().Err(cerr).Msg("closing storage")
		}
	}()

	handler := api.NewServer(svc, api.Options{
		RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
		Burst:             cfg.Server.RateLimit.Burst,
		CORSOrigins:       cfg.Server.CORSOrigins,
		Logger:            opts.logger,
		Metrics:           m,
		Version:           ver,
	}).Handler()

	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return cmd.Context() },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	opts.logger.Info().Str("addr", ln.Addr().String()).Msg("ecojourney API listening")
	cmd.Printf("Listening on %s\n", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	opts.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
