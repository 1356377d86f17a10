package auth

import (
	"encoding/json"
	"net/http"

	"github.com/obsidianstack/sidecar/sidecar/internal/config"
)

// QueryParam is the query parameter accepted in place of the header, for
// WebSocket clients that cannot set request headers.
const QueryParam = "api_key"

// Middleware returns next wrapped with API key authentication. Requests to
// any of the open paths (e.g. the health check) skip the check.
func Middleware(cfg config.ServerAuthConfig, next http.Handler, open ...string) http.Handler {
	g := newGuard(cfg)
	if !g.enabled() {
		return next
	}
	skip := make(map[string]bool, len(open))
	for _, p := range open {
		skip[p] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skip[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get(g.header)
		if key == "" {
			key = r.URL.Query().Get(QueryParam)
		}
		if !g.valid(key) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
			return
		}
		next.ServeHTTP(w, r)
	})
}
