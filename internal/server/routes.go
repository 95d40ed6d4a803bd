// Package server wires HTTP handlers into a ServeMux for the relay via
// routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all
// application routes: the root redirect, the landing page, the static
// tree, the WebSocket endpoint, and the health check.
func SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", RootHandler)
	mux.HandleFunc("/index.html", IndexHandler)
	mux.HandleFunc("/connect", ConnectHandler)
	mux.HandleFunc("/healthz", HealthHandler)
	mux.HandleFunc("/static/", StaticHandler)
	return mux
}

// RootHandler redirects the bare root path to the landing page.
func RootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/index.html", http.StatusFound)
}

// StaticHandler serves the static asset tree from the configured public
// directory.
func StaticHandler(w http.ResponseWriter, r *http.Request) {
	cfg := currentConfig()
	http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.PublicDir))).ServeHTTP(w, r)
}
