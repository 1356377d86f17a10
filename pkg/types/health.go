package types

import "time"

// HealthStatus is the tri-state health classification.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResult is a status plus ordered, human-readable reasons.
// Reasons is empty (never nil) when Status is healthy.
type HealthResult struct {
	Status  HealthStatus `json:"status"`
	Reasons []string     `json:"reasons"`
}

// LogType is a semantic category of pipeline traffic derived from plugin ids.
type LogType string

const (
	LogTypeMicroseg     LogType = "microseg"
	LogTypeMITM         LogType = "mitm"
	LogTypeSuricata     LogType = "suricata"
	LogTypeFQDN         LogType = "fqdn"
	LogTypeCmd          LogType = "cmd"
	LogTypeGWNetStats   LogType = "gw_net_stats"
	LogTypeGWSysStats   LogType = "gw_sys_stats"
	LogTypeTunnelStatus LogType = "tunnel_status"
)

// LogTypes is every known category in display order.
var LogTypes = []LogType{
	LogTypeMicroseg,
	LogTypeMITM,
	LogTypeSuricata,
	LogTypeFQDN,
	LogTypeCmd,
	LogTypeGWNetStats,
	LogTypeGWSysStats,
	LogTypeTunnelStatus,
}

var logTypeLabels = map[LogType]string{
	LogTypeMicroseg:     "L4 Microseg",
	LogTypeMITM:         "L7 MITM/DCF",
	LogTypeSuricata:     "Suricata IDS",
	LogTypeFQDN:         "FQDN Firewall",
	LogTypeCmd:          "Controller CMD",
	LogTypeGWNetStats:   "GW Net Stats",
	LogTypeGWSysStats:   "GW Sys Stats",
	LogTypeTunnelStatus: "Tunnel Status",
}

// Label returns the display label for t, or t itself when unknown.
func (t LogType) Label() string {
	if l, ok := logTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

// DropReason is one reason bucket of dropped events.
type DropReason struct {
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}

// LogTypeDelta is the per-category breakdown. Counts are cumulative to date;
// EPS is per polling interval.
type LogTypeDelta struct {
	LogType     LogType      `json:"log_type"`
	Label       string       `json:"label"`
	Received    int64        `json:"received"`
	Dropped     int64        `json:"dropped"`
	DropReasons []DropReason `json:"drop_reasons"`
	Sent        int64        `json:"sent"`
	Failed      int64        `json:"failed"`
	EPS         float64      `json:"eps"`
}

// PollerStatus makes poll failures observable. The poll loops never return
// errors; they record them here instead.
type PollerStatus struct {
	TotalPolls          int64     `json:"total_polls"`
	TotalFailures       int64     `json:"total_failures"`
	ConsecutiveFailures int64     `json:"consecutive_failures"`
	LastSuccessAt       time.Time `json:"last_success_at"`
	LastErrorAt         time.Time `json:"last_error_at"`
	LastError           string    `json:"last_error,omitempty"`
}

// CertStatus describes the TLS leaf certificate of the Logstash endpoint.
type CertStatus struct {
	Endpoint string `json:"endpoint"`
	Status   string `json:"status"` // valid | expiring | expired | unreachable
	DaysLeft int    `json:"days_left"`
	Issuer   string `json:"issuer,omitempty"`
	NotAfter string `json:"not_after,omitempty"` // RFC3339
}
