// Package server normalizes and validates HTTP origins for WebSocket
// requests to enforce configured access control.
package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

func normalizeOrigins(origins []string) ([]string, bool) {
	allowAll := false

	normalized := lo.FilterMap(origins, func(origin string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			return "", false
		}
		if trimmed == "*" {
			allowAll = true
			return "", false
		}

		normalizedOrigin, ok := normalizeOrigin(trimmed)
		if !ok {
			slog.Warn("ignoring invalid origin in configuration", slog.String("origin", origin))
			return "", false
		}
		return normalizedOrigin, true
	})

	if len(normalized) == 0 {
		normalized = nil
	}
	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func isOriginAllowed(r *http.Request) bool {
	originHeader := r.Header.Get("Origin")
	if originHeader == "" {
		// Non-browser clients send no Origin header; the allow-list only
		// guards against cross-site browser requests.
		return true
	}

	normalizedOrigin, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}

	configMu.RLock()
	defer configMu.RUnlock()

	if allowAllOrigins {
		return true
	}
	_, exists := allowedOrigins[normalizedOrigin]
	return exists
}

func checkOrigin(r *http.Request) bool {
	if isOriginAllowed(r) {
		return true
	}

	slog.Warn("blocked connection from disallowed origin", slog.String("origin", r.Header.Get("Origin")))
	return false
}
