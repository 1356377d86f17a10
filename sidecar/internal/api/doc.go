// Package api implements the sidecar's HTTP REST API.
//
// New(store, alerts) returns an http.Handler that serves:
//
//	GET /api/health       health status and reasons; 503 when unhealthy
//	GET /api/stats        aggregate stats snapshot
//	GET /api/history      deltas for ?range=1h|6h|12h|24h (default 1h); 400 otherwise
//	GET /api/hot-threads  Logstash hot threads as text/plain; 502 on failure
//	GET /api/outputs      output plugin stats of the latest sample
//	GET /api/samples      every retained sample, oldest first
//	GET /api/alerts       firing and recently resolved alerts
//
// Non-GET methods get a JSON 405. Responses are application/json unless
// noted. /metrics and /ws/stream are mounted next to this handler by the
// sidecar binary.
package api
