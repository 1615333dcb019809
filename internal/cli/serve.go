package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"hedgeTracker/internal/api"
	"hedgeTracker/internal/metrics"
	"hedgeTracker/internal/ports"
)

const shutdownTimeout = 10 * time.Second

func (r *runner) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = r.opts.HTTPAddr
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", ln.Addr())
			return r.serve(cmd.Context(), ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: HTTP_ADDR)")
	return cmd
}

// serve runs the API on ln until ctx is cancelled, then shuts down gracefully.
// When a price stream is configured it feeds the reference price cache.
func (r *runner) serve(ctx context.Context, ln net.Listener) error {
	logger := r.opts.Logger
	srv := &http.Server{
		Handler:           api.NewServer(r.opts.Service, logger, r.opts.Metrics).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.opts.Stream != nil {
		stream := observedStream{stream: r.opts.Stream, metrics: r.opts.Metrics}
		go func() {
			if err := r.opts.Service.WatchPrices(ctx, stream); err != nil {
				logger.Error(ctx, err, "Price stream stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP server starting", map[string]interface{}{"addr": ln.Addr().String()})
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "Shutting down HTTP server")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// observedStream counts every streamed quote in the metrics before handing it on.
type observedStream struct {
	stream  ports.PriceStream
	metrics *metrics.Metrics
}

func (s observedStream) Subscribe(ctx context.Context, handler func(price float64)) error {
	return s.stream.Subscribe(ctx, func(price float64) {
		if s.metrics != nil {
			s.metrics.ObservePrice(price)
		}
		handler(price)
	})
}
