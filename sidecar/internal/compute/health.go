package compute

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/obsidianstack/sidecar/pkg/types"
)

// Thresholds tune the health evaluator.
type Thresholds struct {
	// UnreachableAfter is how stale the last successful contact may get
	// before the node is reported unhealthy.
	UnreachableAfter time.Duration

	// HeapPercent is the heap usage above which the node is degraded.
	// The comparison is strictly greater-than.
	HeapPercent float64

	// StuckWindow is the number of most recent deltas the stuck-pipeline
	// check looks at; fewer available deltas skip the check.
	StuckWindow int

	// StuckMinDuration is the minimum time the window must cover.
	StuckMinDuration time.Duration
}

// DefaultThresholds returns 30s unreachable, 90% heap and a 5-delta window
// covering at least 5 minutes.
func DefaultThresholds() Thresholds {
	return Thresholds{
		UnreachableAfter: 30 * time.Second,
		HeapPercent:      90,
		StuckWindow:      5,
		StuckMinDuration: 5 * time.Minute,
	}
}

// ReasonPipelineStuck is reported when output has been zero for the whole
// window while input was seen.
const ReasonPipelineStuck = "Output EPS is 0 while input is active (pipeline stuck)"

// Evaluate classifies node health. It is a pure function of its arguments.
//
// current is the latest sample, nil when none has been collected. recent
// holds the most recent deltas in arrival order. lastContact is the time of
// the last successful request to the node, zero if there has been none.
//
// An unreachable node short-circuits to unhealthy with a single reason.
// Otherwise heap, DLQ, output failure and stuck-pipeline checks each add a
// degraded reason, in that order.
func Evaluate(current *types.MetricsSample, recent []types.MetricsDelta, lastContact, now time.Time, th Thresholds) types.HealthResult {
	if lastContact.IsZero() {
		return types.HealthResult{
			Status:  types.StatusUnhealthy,
			Reasons: []string{"Logstash API has not been reached yet"},
		}
	}
	since := now.Sub(lastContact)
	if current == nil || since > th.UnreachableAfter {
		secs := math.Round(since.Seconds())
		return types.HealthResult{
			Status:  types.StatusUnhealthy,
			Reasons: []string{fmt.Sprintf("Logstash API unreachable for %.0fs", secs)},
		}
	}

	reasons := []string{}

	if pct := current.JVM.HeapUsedPercent; pct > th.HeapPercent {
		reasons = append(reasons, fmt.Sprintf("JVM heap at %.1f%% (>%g%%)", pct, th.HeapPercent))
	}

	if dlq := current.DLQ; dlq != nil && dlq.QueueSizeBytes > 0 {
		reasons = append(reasons, fmt.Sprintf("Dead letter queue has %s of data",
			humanize.IBytes(uint64(dlq.QueueSizeBytes))))
	}

	var failures int64
	for _, o := range current.Pipeline.Plugins.Outputs {
		failures += o.FailureCount()
	}
	if failures > 0 {
		reasons = append(reasons, fmt.Sprintf("%d output failures detected", failures))
	}

	if pipelineStuck(recent, th) {
		reasons = append(reasons, ReasonPipelineStuck)
	}

	if len(reasons) > 0 {
		return types.HealthResult{Status: types.StatusDegraded, Reasons: reasons}
	}
	return types.HealthResult{Status: types.StatusHealthy, Reasons: []string{}}
}

// pipelineStuck reports whether the last StuckWindow deltas span at least
// StuckMinDuration, saw input in at least one delta and zero output in all.
func pipelineStuck(recent []types.MetricsDelta, th Thresholds) bool {
	n := th.StuckWindow
	if n <= 0 || len(recent) < n {
		return false
	}
	window := recent[len(recent)-n:]

	var total float64
	hasInput := false
	for _, d := range window {
		total += d.IntervalSecs
		if d.InputEPS > 0 {
			hasInput = true
		}
		if d.OutputEPS != 0 {
			return false
		}
	}
	return hasInput && total >= th.StuckMinDuration.Seconds()
}
