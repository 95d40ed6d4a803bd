// Package server constructs and starts the relay's HTTP service with
// helpers that apply sensible production defaults.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified
// listen address and handler. It sets reasonable timeout values for
// production use.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and begins listening for
// connections. It blocks until the server stops.
func StartServer(server *http.Server) error {
	slog.Info("listening", slog.String("addr", server.Addr))
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without
// interrupting active connections, waiting until they close or the
// timeout is reached. Live WebSocket sessions end with the process; there
// is no cross-session shutdown coordination.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	slog.Info("shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown", slog.Any("error", err))
		return err
	}

	slog.Info("HTTP server shutdown completed")
	return nil
}
