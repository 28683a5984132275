package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Server runs the HTTP listener as a supervised service.
type Server struct {
	Addr    string
	Handler http.Handler
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{Addr: addr, Handler: handler}
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
// A fresh http.Server is built per call so the supervisor can restart it.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("module", "adapters.http").Str("addr", s.Addr).Msg("relay server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Str("module", "adapters.http").Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("server forced to shutdown")
		return err
	}
	log.Info().Str("module", "adapters.http").Msg("server exited gracefully")
	return ctx.Err()
}

func (s *Server) String() string { return "http" }
