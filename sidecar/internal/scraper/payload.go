package scraper

import (
	"bytes"
	"encoding/json"
	"errors"
)

// NodeStatsPayload is the subset of GET /_node/stats the sidecar consumes.
// Blocks the node may omit are pointers; absent scalars decode as zero.
type NodeStatsPayload struct {
	Version   string                    `json:"version"`
	JVM       *JVMPayload               `json:"jvm"`
	Process   *ProcessPayload           `json:"process"`
	Pipeline  *PipelinePayload          `json:"pipeline"`
	Pipelines Ordered[*PipelinePayload] `json:"pipelines"`

	// DeadLetterQueue is the node-level DLQ block some versions report
	// outside the pipeline.
	DeadLetterQueue *DLQPayload `json:"dead_letter_queue"`
}

type JVMPayload struct {
	UptimeInMillis int64          `json:"uptime_in_millis"`
	Mem            *JVMMemPayload `json:"mem"`
	GC             *JVMGCPayload  `json:"gc"`
}

type JVMGCPayload struct {
	Collectors map[string]GCCollectorPayload `json:"collectors"`
}

type JVMMemPayload struct {
	HeapUsedInBytes int64   `json:"heap_used_in_bytes"`
	HeapMaxInBytes  int64   `json:"heap_max_in_bytes"`
	HeapUsedPercent float64 `json:"heap_used_percent"`
}

type GCCollectorPayload struct {
	CollectionCount        int64 `json:"collection_count"`
	CollectionTimeInMillis int64 `json:"collection_time_in_millis"`
}

type ProcessPayload struct {
	OpenFileDescriptors int64              `json:"open_file_descriptors"`
	MaxFileDescriptors  int64              `json:"max_file_descriptors"`
	CPU                 *ProcessCPUPayload `json:"cpu"`
	Mem                 *ProcessMemPayload `json:"mem"`
}

type ProcessCPUPayload struct {
	Percent float64 `json:"percent"`
}

type ProcessMemPayload struct {
	TotalVirtualInBytes int64 `json:"total_virtual_in_bytes"`
}

// PipelinePayload is one entry of the pipelines map.
type PipelinePayload struct {
	Events          EventsPayload  `json:"events"`
	Queue           *QueuePayload  `json:"queue"`
	Plugins         PluginsPayload `json:"plugins"`
	Reloads         ReloadsPayload `json:"reloads"`
	DeadLetterQueue *DLQPayload    `json:"dead_letter_queue"`
}

type EventsPayload struct {
	In                        int64 `json:"in"`
	Out                       int64 `json:"out"`
	Filtered                  int64 `json:"filtered"`
	DurationInMillis          int64 `json:"duration_in_millis"`
	QueuePushDurationInMillis int64 `json:"queue_push_duration_in_millis"`
}

// QueuePayload reports occupancy as events_count on current Logstash
// versions and as events on older ones.
type QueuePayload struct {
	Type        string           `json:"type"`
	EventsCount *int64           `json:"events_count"`
	Events      *int64           `json:"events"`
	Capacity    *CapacityPayload `json:"capacity"`
}

type CapacityPayload struct {
	MaxQueueSizeInBytes int64 `json:"max_queue_size_in_bytes"`
	QueueSizeInBytes    int64 `json:"queue_size_in_bytes"`
}

type PluginsPayload struct {
	Filters []PluginPayload `json:"filters"`
	Outputs []PluginPayload `json:"outputs"`
}

type PluginPayload struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Events   PluginEventsPayload `json:"events"`
	Failures *int64              `json:"failures"`
}

type PluginEventsPayload struct {
	In               int64 `json:"in"`
	Out              int64 `json:"out"`
	DurationInMillis int64 `json:"duration_in_millis"`
}

type ReloadsPayload struct {
	Successes            int64  `json:"successes"`
	Failures             int64  `json:"failures"`
	LastSuccessTimestamp string `json:"last_success_timestamp"`
	LastFailureTimestamp string `json:"last_failure_timestamp"`
}

type DLQPayload struct {
	QueueSizeInBytes    int64 `json:"queue_size_in_bytes"`
	MaxQueueSizeInBytes int64 `json:"max_queue_size_in_bytes"`
	DroppedEvents       int64 `json:"dropped_events"`
	ExpiredEvents       int64 `json:"expired_events"`
}

// NodeInfoPayload is the subset of GET /_node the sidecar consumes.
type NodeInfoPayload struct {
	Version   string                        `json:"version"`
	Pipelines Ordered[*PipelineInfoPayload] `json:"pipelines"`
}

type PipelineInfoPayload struct {
	Workers                int               `json:"workers"`
	BatchSize              int               `json:"batch_size"`
	BatchDelay             int               `json:"batch_delay"`
	DeadLetterQueueEnabled bool              `json:"dead_letter_queue_enabled"`
	Queue                  *QueueInfoPayload `json:"queue"`
}

type QueueInfoPayload struct {
	Type string `json:"type"`
}

// Named is one key/value entry of an Ordered object.
type Named[T any] struct {
	Name  string
	Value T
}

// Ordered decodes a JSON object into its entries in document order, so
// "the first pipeline" means the first one the node reported.
type Ordered[T any] []Named[T]

// Get returns the value stored under name.
func (o Ordered[T]) Get(name string) (T, bool) {
	for _, e := range o {
		if e.Name == name {
			return e.Value, true
		}
	}
	var zero T
	return zero, false
}

// First returns the first entry's value.
func (o Ordered[T]) First() (T, bool) {
	if len(o) == 0 {
		var zero T
		return zero, false
	}
	return o[0].Value, true
}

// UnmarshalJSON implements json.Unmarshaler. Entries whose value has a
// mistyped field are kept with that field zeroed. A value that is not an
// object (null, array, string, number) decodes to an empty Ordered.
func (o *Ordered[T]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		*o = nil
		return nil
	}

	out := Ordered[T]{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)

		var v T
		if err := dec.Decode(&v); err != nil {
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &typeErr) {
				return err
			}
		}
		out = append(out, Named[T]{Name: name, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}
