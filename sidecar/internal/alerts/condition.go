package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/obsidianstack/sidecar/pkg/types"
)

// condition is a parsed "field op value" rule expression.
type condition struct {
	field string
	op    string
	rhs   string
	num   float64
}

// parseCondition parses a rule expression such as:
//
//	heap_used_pct > 85
//	output_eps == 0
//	dlq_bytes > 1048576
//	state == unhealthy
//	state != healthy
func parseCondition(s string) (condition, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return condition{}, fmt.Errorf("alerts: condition %q: want \"field op value\"", s)
	}
	c := condition{field: parts[0], op: parts[1], rhs: parts[2]}

	if c.field == "state" {
		if c.op != "==" && c.op != "!=" {
			return condition{}, fmt.Errorf("alerts: condition %q: state supports == and != only", s)
		}
		return c, nil
	}
	if _, ok := numericField(c.field, types.StatsSnapshot{}); !ok {
		return condition{}, fmt.Errorf("alerts: condition %q: unknown field %q", s, c.field)
	}
	switch c.op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return condition{}, fmt.Errorf("alerts: condition %q: unknown operator %q", s, c.op)
	}
	n, err := strconv.ParseFloat(c.rhs, 64)
	if err != nil {
		return condition{}, fmt.Errorf("alerts: condition %q: %w", s, err)
	}
	c.num = n
	return c, nil
}

// eval reports whether the condition holds for snap, and the value it
// tested. State comparisons report a value of 0.
func (c condition) eval(snap types.StatsSnapshot) (bool, float64) {
	if c.field == "state" {
		eq := string(snap.Health.Status) == c.rhs
		if c.op == "!=" {
			return !eq, 0
		}
		return eq, 0
	}
	v, _ := numericField(c.field, snap)
	return compareFloat(v, c.op, c.num), v
}

// numericField maps a field name to its value in the snapshot.
func numericField(field string, snap types.StatsSnapshot) (float64, bool) {
	switch field {
	case "heap_used_pct":
		return snap.JVM.HeapUsedPercent, true
	case "cpu_pct":
		return snap.Process.CPUPercent, true
	case "input_eps":
		return snap.Pipeline.InputEPS, true
	case "output_eps":
		return snap.Pipeline.OutputEPS, true
	case "avg_eps_1h":
		return snap.Pipeline.AvgEPS1h, true
	case "queue_events":
		return float64(snap.Pipeline.QueueEvents), true
	case "dlq_bytes":
		return float64(snap.DLQ.QueueSizeBytes), true
	case "output_failures":
		return float64(snap.Pipeline.OutputFailures), true
	case "fd_used_pct":
		if snap.Process.MaxFileDescriptors <= 0 {
			return 0, true
		}
		return float64(snap.Process.OpenFileDescriptors) / float64(snap.Process.MaxFileDescriptors) * 100, true
	case "poll_failures":
		return float64(snap.Poller.ConsecutiveFailures), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
