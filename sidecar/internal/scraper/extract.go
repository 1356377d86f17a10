package scraper

import (
	"time"

	"github.com/obsidianstack/sidecar/pkg/types"
)

const defaultQueueType = "memory"

// Extract normalizes one node stats payload into a MetricsSample stamped
// with at. It never fails: absent blocks and fields become zero values, an
// empty plugin list, or a nil DLQ.
func Extract(p *NodeStatsPayload, at time.Time) types.MetricsSample {
	s := types.MetricsSample{Timestamp: at}
	if p == nil {
		s.Pipeline = extractPipeline(nil)
		return s
	}

	if jvm := p.JVM; jvm != nil {
		s.JVM.UptimeMs = jvm.UptimeInMillis
		if m := jvm.Mem; m != nil {
			s.JVM.HeapUsedBytes = m.HeapUsedInBytes
			s.JVM.HeapMaxBytes = m.HeapMaxInBytes
			s.JVM.HeapUsedPercent = m.HeapUsedPercent
		}
		if jvm.GC != nil {
			for _, c := range jvm.GC.Collectors {
				s.JVM.GCCollectionCount += c.CollectionCount
				s.JVM.GCCollectionTimeMs += c.CollectionTimeInMillis
			}
		}
	}

	if proc := p.Process; proc != nil {
		s.Process.OpenFileDescriptors = proc.OpenFileDescriptors
		s.Process.MaxFileDescriptors = proc.MaxFileDescriptors
		if proc.CPU != nil {
			s.Process.CPUPercent = proc.CPU.Percent
		}
		if proc.Mem != nil {
			s.Process.MemTotalVirtualBytes = proc.Mem.TotalVirtualInBytes
		}
	}

	pipe := selectPipeline(p)
	s.Pipeline = extractPipeline(pipe)

	dlq := p.DeadLetterQueue
	if pipe != nil && pipe.DeadLetterQueue != nil {
		dlq = pipe.DeadLetterQueue
	}
	if dlq != nil {
		s.DLQ = &types.DLQStats{
			QueueSizeBytes:    dlq.QueueSizeInBytes,
			MaxQueueSizeBytes: dlq.MaxQueueSizeInBytes,
			DroppedEvents:     dlq.DroppedEvents,
			ExpiredEvents:     dlq.ExpiredEvents,
		}
	}
	return s
}

// selectPipeline picks pipelines["main"], else the single-pipeline block,
// else the first named pipeline in document order.
func selectPipeline(p *NodeStatsPayload) *PipelinePayload {
	if main, ok := p.Pipelines.Get("main"); ok && main != nil {
		return main
	}
	if p.Pipeline != nil {
		return p.Pipeline
	}
	first, _ := p.Pipelines.First()
	return first
}

func extractPipeline(pipe *PipelinePayload) types.PipelineStats {
	ps := types.PipelineStats{
		Queue: types.QueueStats{Type: defaultQueueType},
		Plugins: types.PluginGroups{
			Filters: []types.PluginStat{},
			Outputs: []types.PluginStat{},
		},
	}
	if pipe == nil {
		return ps
	}

	ps.Events = types.PipelineEvents{
		In:                  pipe.Events.In,
		Out:                 pipe.Events.Out,
		Filtered:            pipe.Events.Filtered,
		DurationMs:          pipe.Events.DurationInMillis,
		QueuePushDurationMs: pipe.Events.QueuePushDurationInMillis,
	}

	if q := pipe.Queue; q != nil {
		switch {
		case q.EventsCount != nil:
			ps.Queue.Events = *q.EventsCount
		case q.Events != nil:
			ps.Queue.Events = *q.Events
		}
		if q.Type != "" {
			ps.Queue.Type = q.Type
		}
		if q.Capacity != nil {
			ps.Queue.Capacity = &types.QueueCapacity{
				MaxQueueSizeBytes: q.Capacity.MaxQueueSizeInBytes,
				QueueSizeBytes:    q.Capacity.QueueSizeInBytes,
			}
		}
	}

	ps.Plugins.Filters = extractPlugins(pipe.Plugins.Filters)
	ps.Plugins.Outputs = extractPlugins(pipe.Plugins.Outputs)

	ps.Reloads = types.ReloadStats{
		Successes:            pipe.Reloads.Successes,
		Failures:             pipe.Reloads.Failures,
		LastSuccessTimestamp: pipe.Reloads.LastSuccessTimestamp,
		LastFailureTimestamp: pipe.Reloads.LastFailureTimestamp,
	}
	return ps
}

func extractPlugins(in []PluginPayload) []types.PluginStat {
	out := make([]types.PluginStat, 0, len(in))
	for _, p := range in {
		st := types.PluginStat{
			ID:   p.ID,
			Name: p.Name,
			Events: types.PluginEvents{
				In:         p.Events.In,
				Out:        p.Events.Out,
				DurationMs: p.Events.DurationInMillis,
			},
		}
		if p.Failures != nil {
			f := *p.Failures
			st.Failures = &f
		}
		out = append(out, st)
	}
	return out
}

// ExtractConfig maps node info to the pipeline configuration and the
// Logstash version. ok is false when the node reports no pipeline; the
// version is returned either way.
func ExtractConfig(p *NodeInfoPayload) (cfg types.PipelineConfig, version string, ok bool) {
	cfg = types.DefaultPipelineConfig()
	if p == nil {
		return cfg, "", false
	}
	pipe, found := p.Pipelines.Get("main")
	if !found || pipe == nil {
		pipe, _ = p.Pipelines.First()
	}
	if pipe == nil {
		return cfg, p.Version, false
	}

	cfg.Workers = pipe.Workers
	cfg.BatchSize = pipe.BatchSize
	cfg.BatchDelay = pipe.BatchDelay
	cfg.DLQEnabled = pipe.DeadLetterQueueEnabled
	if pipe.Queue != nil && pipe.Queue.Type != "" {
		cfg.QueueType = pipe.Queue.Type
	}
	return cfg, p.Version, true
}
