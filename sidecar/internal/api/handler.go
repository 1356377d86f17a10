package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/obsidianstack/sidecar/pkg/types"
	"github.com/obsidianstack/sidecar/sidecar/internal/alerts"
	"github.com/obsidianstack/sidecar/sidecar/internal/store"
)

// Store is the read side of the polling core. *store.Store satisfies it.
type Store interface {
	Health() types.HealthResult
	Stats() types.StatsSnapshot
	History(r store.Range) []types.MetricsDelta
	Buffer() []types.MetricsSample
	OutputPlugins() []types.PluginStat
	HotThreads(ctx context.Context) (string, error)
}

// AlertSource lists active and recently resolved alerts. *alerts.Engine
// satisfies it.
type AlertSource interface {
	Active() []alerts.Alert
}

// Handler is the HTTP handler for all /api/* endpoints.
type Handler struct {
	store  Store
	alerts AlertSource
	mux    *http.ServeMux
}

// New creates a Handler wired to st and al and registers all routes.
// al may be nil, in which case /api/alerts returns an empty list.
func New(st Store, al AlertSource) http.Handler {
	h := &Handler{store: st, alerts: al, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/health", h.get(h.health))
	h.mux.HandleFunc("/api/stats", h.get(h.stats))
	h.mux.HandleFunc("/api/history", h.get(h.history))
	h.mux.HandleFunc("/api/hot-threads", h.get(h.hotThreads))
	h.mux.HandleFunc("/api/outputs", h.get(h.outputs))
	h.mux.HandleFunc("/api/samples", h.get(h.samples))
	h.mux.HandleFunc("/api/alerts", h.get(h.listAlerts))
	h.mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// get rejects every method but GET with a JSON 405.
func (h *Handler) get(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/health; 503 when unhealthy so load balancers and
// health checkers can act on the status code alone.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	res := h.store.Health()
	code := http.StatusOK
	if res.Status == types.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	jsonResp(w, code, res)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.store.Stats())
}

// history returns GET /api/history?range=1h|6h|12h|24h (default 1h).
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Query().Get("range")
	if param == "" {
		param = string(store.Range1h)
	}
	rng, err := store.ParseRange(param)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "Invalid range. Use: 1h, 6h, 12h, 24h")
		return
	}
	jsonResp(w, http.StatusOK, h.store.History(rng))
}

// hotThreads proxies the Logstash hot threads report as plain text.
func (h *Handler) hotThreads(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	text, err := h.store.HotThreads(r.Context())
	if err != nil {
		slog.Warn("api: hot threads fetch failed", "err", err)
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, "Failed to fetch hot threads: %v", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text)) //nolint:errcheck
}

func (h *Handler) outputs(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.store.OutputPlugins())
}

// samples returns the full retained buffer, oldest first.
func (h *Handler) samples(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.store.Buffer())
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
