// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kusari-oss/triage/internal/logging"
)

// DefaultShutdownTimeout bounds graceful shutdown
const DefaultShutdownTimeout = 10 * time.Second

// Options configures the middleware shared by both servers
type Options struct {
	Logger      *slog.Logger
	RateLimiter *RateLimiter
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

// NewAgentHandler serves /api/analyze and /healthz
func NewAgentHandler(runner Runner, options Options) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/analyze", analyzeHandler(runner))
	mux.HandleFunc("GET /healthz", healthHandler)
	return wrap(mux, options)
}

// NewGuardHandler serves /api/remediate and /healthz
func NewGuardHandler(evaluator Evaluator, options Options) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/remediate", remediateHandler(evaluator))
	mux.HandleFunc("GET /healthz", healthHandler)
	return wrap(mux, options)
}

func wrap(h http.Handler, options Options) http.Handler {
	logger := options.logger()
	return chainMiddleware(h,
		requestIDMiddleware(),
		tracingMiddleware(),
		loggingMiddleware(logger),
		recoverMiddleware(logger),
		options.RateLimiter.Middleware(),
	)
}

// Run serves handler on addr until the context is canceled or the server fails.
func Run(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.Discard()
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
