package types

// StatsSnapshot is the aggregate view combining health, throughput,
// JVM/process/DLQ figures, the per-category breakdown and pipeline config.
type StatsSnapshot struct {
	Health      HealthResult    `json:"health"`
	OutputType  string          `json:"output_type"`
	Destination string          `json:"destination"`
	LogProfile  string          `json:"log_profile"`
	Uptime      string          `json:"uptime"`
	Version     string          `json:"version"`
	Pipeline    PipelineSummary `json:"pipeline"`
	JVM         JVMSummary      `json:"jvm"`
	Process     ProcessSummary  `json:"process"`
	DLQ         DLQStats        `json:"dlq"`
	LogTypes    []LogTypeDelta  `json:"log_types"`
	Config      PipelineConfig  `json:"config"`
	Poller      PollerStatus    `json:"poller"`
	Cert        *CertStatus     `json:"cert,omitempty"`
}

// PipelineSummary is the throughput section of StatsSnapshot.
type PipelineSummary struct {
	EventsIn       int64   `json:"events_in"`
	EventsOut      int64   `json:"events_out"`
	InputEPS       float64 `json:"input_eps"`
	OutputEPS      float64 `json:"output_eps"`
	AvgEPS1h       float64 `json:"avg_eps_1h"`
	QueueEvents    int64   `json:"queue_events"`
	QueueSizeBytes int64   `json:"queue_size_bytes"`
	QueueMaxBytes  int64   `json:"queue_max_bytes"`
	QueueType      string  `json:"queue_type"`
	OutputFailures int64   `json:"output_failures"`
}

// JVMSummary is the JVM section of StatsSnapshot.
type JVMSummary struct {
	HeapUsedBytes      int64   `json:"heap_used_bytes"`
	HeapMaxBytes       int64   `json:"heap_max_bytes"`
	HeapUsedPercent    float64 `json:"heap_used_percent"`
	GCCollectionTimeMs int64   `json:"gc_collection_time_ms"`
	GCCollectionCount  int64   `json:"gc_collection_count"`
}

// ProcessSummary is the process section of StatsSnapshot.
type ProcessSummary struct {
	CPUPercent          float64 `json:"cpu_percent"`
	OpenFileDescriptors int64   `json:"open_file_descriptors"`
	MaxFileDescriptors  int64   `json:"max_file_descriptors"`
}
