package types

import "time"

// MetricsSample is one normalized snapshot of the Logstash node stats API.
// Samples are immutable once created; the store owns them after insertion.
type MetricsSample struct {
	Timestamp time.Time     `json:"timestamp"`
	JVM       JVMStats      `json:"jvm"`
	Process   ProcessStats  `json:"process"`
	Pipeline  PipelineStats `json:"pipeline"`
	DLQ       *DLQStats     `json:"dlq,omitempty"` // nil when the node reports no dead letter queue
}

// JVMStats holds heap and garbage collection figures. GC counters are summed
// across every reported collector.
type JVMStats struct {
	HeapUsedBytes      int64   `json:"heap_used_bytes"`
	HeapMaxBytes       int64   `json:"heap_max_bytes"`
	HeapUsedPercent    float64 `json:"heap_used_percent"`
	GCCollectionTimeMs int64   `json:"gc_collection_time_ms"`
	GCCollectionCount  int64   `json:"gc_collection_count"`
	UptimeMs           int64   `json:"uptime_ms"`
}

// ProcessStats holds OS-level resource figures for the Logstash process.
type ProcessStats struct {
	CPUPercent           float64 `json:"cpu_percent"`
	OpenFileDescriptors  int64   `json:"open_file_descriptors"`
	MaxFileDescriptors   int64   `json:"max_file_descriptors"`
	MemTotalVirtualBytes int64   `json:"mem_total_virtual_bytes"`
}

// PipelineStats holds the counters of the selected pipeline.
type PipelineStats struct {
	Events  PipelineEvents `json:"events"`
	Queue   QueueStats     `json:"queue"`
	Plugins PluginGroups   `json:"plugins"`
	Reloads ReloadStats    `json:"reloads"`
}

// PipelineEvents are cumulative event counters since the pipeline started.
type PipelineEvents struct {
	In                  int64 `json:"in"`
	Out                 int64 `json:"out"`
	Filtered            int64 `json:"filtered"`
	DurationMs          int64 `json:"duration_ms"`
	QueuePushDurationMs int64 `json:"queue_push_duration_ms"`
}

// QueueStats describes the pipeline queue. Capacity is only reported for
// persisted queues.
type QueueStats struct {
	Events   int64          `json:"events"`
	Type     string         `json:"type"`
	Capacity *QueueCapacity `json:"capacity,omitempty"`
}

// QueueCapacity is the on-disk size of a persisted queue.
type QueueCapacity struct {
	MaxQueueSizeBytes int64 `json:"max_queue_size_bytes"`
	QueueSizeBytes    int64 `json:"queue_size_bytes"`
}

// PluginGroups holds per-plugin stats for filters and outputs.
type PluginGroups struct {
	Filters []PluginStat `json:"filters"`
	Outputs []PluginStat `json:"outputs"`
}

// ReloadStats counts pipeline config reloads.
type ReloadStats struct {
	Successes            int64  `json:"successes"`
	Failures             int64  `json:"failures"`
	LastSuccessTimestamp string `json:"last_success_timestamp,omitempty"`
	LastFailureTimestamp string `json:"last_failure_timestamp,omitempty"`
}

// DLQStats holds dead letter queue figures.
type DLQStats struct {
	QueueSizeBytes    int64 `json:"queue_size_bytes"`
	MaxQueueSizeBytes int64 `json:"max_queue_size_bytes"`
	DroppedEvents     int64 `json:"dropped_events"`
	ExpiredEvents     int64 `json:"expired_events"`
}

// PluginStat is the event counters of one filter or output plugin.
// Failures is nil when the plugin does not report a failure count.
type PluginStat struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Events   PluginEvents `json:"events"`
	Failures *int64       `json:"failures,omitempty"`
}

// PluginEvents are cumulative per-plugin event counters.
type PluginEvents struct {
	In         int64 `json:"in"`
	Out        int64 `json:"out"`
	DurationMs int64 `json:"duration_ms"`
}

// FailureCount returns the plugin's failure count, or 0 when not reported.
func (p PluginStat) FailureCount() int64 {
	if p.Failures == nil {
		return 0
	}
	return *p.Failures
}

// MetricsDelta holds the rates derived from two chronologically adjacent
// samples. Timestamp is the later sample's timestamp.
type MetricsDelta struct {
	Timestamp    time.Time   `json:"timestamp"`
	IntervalSecs float64     `json:"interval_secs"`
	InputEPS     float64     `json:"input_eps"`
	OutputEPS    float64     `json:"output_eps"`
	Pipeline     DeltaEvents `json:"pipeline"`

	// CounterReset is set when a cumulative counter went backwards between
	// the two samples, typically after a Logstash restart. The deltas and
	// rates are passed through unclamped.
	CounterReset bool `json:"counter_reset,omitempty"`
}

// DeltaEvents holds the raw event-count deltas of a MetricsDelta.
type DeltaEvents struct {
	EventsIn  int64 `json:"events_in"`
	EventsOut int64 `json:"events_out"`
}

// PipelineConfig is the semi-static pipeline configuration read once from
// the node info API.
type PipelineConfig struct {
	Workers    int    `json:"workers"`
	BatchSize  int    `json:"batch_size"`
	BatchDelay int    `json:"batch_delay"`
	QueueType  string `json:"queue_type"`
	DLQEnabled bool   `json:"dlq_enabled"`
}

// DefaultPipelineConfig is served until node info has been fetched.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{QueueType: "memory"}
}
