package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/obsidianstack/sidecar/sidecar/internal/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
})

func TestMiddleware(t *testing.T) {
	h := Middleware(apikeyConfig(t, "", "secret"), okHandler, "/api/health")

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"valid header", "/api/stats", "secret", http.StatusTeapot},
		{"wrong header", "/api/stats", "nope", http.StatusUnauthorized},
		{"missing", "/api/stats", "", http.StatusUnauthorized},
		{"query param", "/ws/stream?api_key=secret", "", http.StatusTeapot},
		{"open path", "/api/health", "", http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("X-Api-Key", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	h := Middleware(config.ServerAuthConfig{Mode: "none"}, okHandler)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rr.Code != http.StatusTeapot {
		t.Errorf("status: got %d, want pass-through", rr.Code)
	}
}

func TestMiddleware_EmptyKeyRejectsAll(t *testing.T) {
	h := Middleware(apikeyConfig(t, "", ""), okHandler, "/api/health")
	for _, target := range []string{"/api/stats", "/api/stats?api_key="} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", target, rr.Code)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rr.Code != http.StatusTeapot {
		t.Errorf("open path: status = %d, want pass-through", rr.Code)
	}
}

func TestMiddleware_UnauthorizedBodyIsJSON(t *testing.T) {
	h := Middleware(apikeyConfig(t, "", "secret"), okHandler)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := rr.Body.String(); body != "{\"error\":\"invalid api key\"}\n" {
		t.Errorf("body = %q", body)
	}
}
