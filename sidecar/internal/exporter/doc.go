// Package exporter renders the stats snapshot as Prometheus metrics.
//
// Families builds client_model metric families named logstash_*; per-log-type
// series carry a log_type label. Handler encodes them with expfmt for
// GET /metrics. Values are computed from the snapshot on every scrape; no
// registry is kept.
package exporter
