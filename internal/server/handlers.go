// Package server exposes the HTTP handlers: the WebSocket upgrade
// endpoint, the minified landing page, and the health check.
package server

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gorilla/websocket"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// registry is the single shared name registry; its lifetime is the
// process lifetime.
var registry = NewRegistry()

// GetRegistry returns the shared registry instance.
func GetRegistry() *Registry {
	return registry
}

var minifier = func() *minify.M {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
	return m
}()

// ConnectHandler upgrades the request to a WebSocket connection and
// starts a Session for it. This is the only place a default name counter
// value is assigned.
func ConnectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.Any("error", err), slog.String("remote_addr", r.RemoteAddr))
		return
	}

	NewSession(conn, registry, r.RemoteAddr).Start()
}

// IndexHandler serves the landing page, minifying the markup and its
// inline CSS/JS on every read so edits show up without a restart. A
// missing or unreadable page fails this request only.
func IndexHandler(w http.ResponseWriter, _ *http.Request) {
	cfg := currentConfig()

	content, err := os.ReadFile(filepath.Join(cfg.PublicDir, "index.html"))
	if err != nil {
		slog.Error("reading landing page", slog.Any("error", err))
		http.Error(w, "landing page unavailable", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := minifier.Minify("text/html", &buf, bytes.NewReader(content)); err != nil {
		slog.Error("minifying landing page", slog.Any("error", err))
		http.Error(w, "landing page unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("writing landing page response", slog.Any("error", err))
	}
}

// HealthHandler provides a simple health check endpoint that reports the
// number of connected sessions.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := fmt.Fprintf(w, "chat relay is running, %d online\n", registry.Count()); err != nil {
		slog.Debug("writing health response", slog.Any("error", err))
	}
}
