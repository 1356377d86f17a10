package compute

import "github.com/obsidianstack/sidecar/pkg/types"

// Delta derives the interval and per-second rates between two samples that
// are adjacent in arrival order. A non-positive interval yields zero rates.
//
// Negative deltas, which appear when Logstash restarts and its cumulative
// counters reset, are passed through unclamped and flagged with CounterReset.
func Delta(prev, curr types.MetricsSample) types.MetricsDelta {
	interval := curr.Timestamp.Sub(prev.Timestamp).Seconds()
	in := curr.Pipeline.Events.In - prev.Pipeline.Events.In
	out := curr.Pipeline.Events.Out - prev.Pipeline.Events.Out

	d := types.MetricsDelta{
		Timestamp:    curr.Timestamp,
		IntervalSecs: interval,
		Pipeline:     types.DeltaEvents{EventsIn: in, EventsOut: out},
		CounterReset: in < 0 || out < 0,
	}
	if interval > 0 {
		d.InputEPS = float64(in) / interval
		d.OutputEPS = float64(out) / interval
	}
	return d
}
