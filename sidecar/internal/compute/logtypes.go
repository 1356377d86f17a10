package compute

import (
	"sort"

	"github.com/obsidianstack/sidecar/pkg/types"
	"github.com/obsidianstack/sidecar/sidecar/internal/plugins"
)

// LogTypes computes the per-category breakdown of curr, one entry per known
// category in display order. Counts are cumulative to date and recomputed
// from scratch on every call.
//
// prev is the previous sample; when nil, or when the interval between the
// two is not positive, every category's EPS is 0.
func LogTypes(curr types.MetricsSample, prev *types.MetricsSample) []types.LogTypeDelta {
	var interval float64
	if prev != nil {
		interval = curr.Timestamp.Sub(prev.Timestamp).Seconds()
	}

	out := make([]types.LogTypeDelta, 0, len(types.LogTypes))
	for _, lt := range types.LogTypes {
		d := types.LogTypeDelta{
			LogType:     lt,
			Label:       lt.Label(),
			DropReasons: []types.DropReason{},
		}

		reasons := make(map[string]int64)
		for _, f := range curr.Pipeline.Plugins.Filters {
			if !plugins.IsDrop(f.ID) {
				continue
			}
			if cat, ok := plugins.Category(f.ID); !ok || cat != lt {
				continue
			}
			d.Dropped += f.Events.In
			reason, ok := plugins.DropReason(f.ID)
			if !ok {
				reason = f.ID
			}
			reasons[reason] += f.Events.In
		}

		d.Sent, d.Failed = outputTotals(curr.Pipeline.Plugins.Outputs, lt)
		d.Received = d.Sent + d.Dropped + d.Failed
		d.DropReasons = sortedReasons(reasons)

		if prev != nil && interval > 0 {
			prevSent, _ := outputTotals(prev.Pipeline.Plugins.Outputs, lt)
			d.EPS = float64(d.Sent-prevSent) / interval
		}
		out = append(out, d)
	}
	return out
}

// outputTotals sums events out and failures of every output serving lt.
func outputTotals(outputs []types.PluginStat, lt types.LogType) (sent, failed int64) {
	for _, o := range outputs {
		if !plugins.Serves(o.ID, lt) {
			continue
		}
		sent += o.Events.Out
		failed += o.FailureCount()
	}
	return sent, failed
}

// sortedReasons drops zero counts and orders by count descending, then by
// reason name so the order is stable.
func sortedReasons(m map[string]int64) []types.DropReason {
	out := make([]types.DropReason, 0, len(m))
	for reason, count := range m {
		if count > 0 {
			out = append(out, types.DropReason{Reason: reason, Count: count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}
