// Package types defines the shared Go types passed between the sidecar's
// polling core and its collaborators (REST API, WebSocket hub, exporter,
// alerts). These are the canonical in-memory representations of Logstash
// telemetry, separate from the raw JSON shapes returned by the Logstash API.
//
//   - MetricsSample : one normalized snapshot of the node stats counters
//   - MetricsDelta  : rates derived from two adjacent samples
//   - LogTypeDelta  : per-category received/dropped/sent/failed breakdown
//   - HealthResult  : healthy | degraded | unhealthy plus ordered reasons
//   - StatsSnapshot : the aggregate view served by GET /api/stats
package types
