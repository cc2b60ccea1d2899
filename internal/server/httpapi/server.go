package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/homeserver/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Server runs an http.Handler until its context ends.
type Server struct {
	address    string
	handler    http.Handler
	logger     logging.Logger
	onShutdown []ShutdownHook
}

// ShutdownHook ends work the HTTP server does not track, such as
// hijacked WebSocket sessions. It must return once that work is done or
// ctx ends.
type ShutdownHook func(ctx context.Context) error

// NewServer prepares a server on address. The onShutdown hooks run in
// order once the listener has stopped, and Serve waits for them.
func NewServer(address string, h http.Handler, l logging.Logger, onShutdown ...ShutdownHook) *Server {
	return &Server{
		address:    address,
		handler:    h,
		logger:     l.With("module", "http_server"),
		onShutdown: onShutdown,
	}
}

// Run listens and serves until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		for _, hook := range s.onShutdown {
			err = errors.Join(err, hook(shutdownCtx))
		}
		done <- err
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-done
}
