package scraper

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/obsidianstack/sidecar/pkg/types"
)

const nodeStatsJSON = `{
  "version": "8.13.4",
  "jvm": {
    "uptime_in_millis": 93784000,
    "mem": {"heap_used_in_bytes": 536870912, "heap_max_in_bytes": 1073741824, "heap_used_percent": 50},
    "gc": {"collectors": {
      "young": {"collection_count": 120, "collection_time_in_millis": 900},
      "old":   {"collection_count": 3,   "collection_time_in_millis": 250}
    }}
  },
  "process": {
    "open_file_descriptors": 210,
    "max_file_descriptors": 65536,
    "cpu": {"percent": 12},
    "mem": {"total_virtual_in_bytes": 4294967296}
  },
  "pipelines": {
    "aux": {"events": {"in": 1, "out": 1}},
    "main": {
      "events": {"in": 10000, "out": 9500, "filtered": 9800, "duration_in_millis": 4000, "queue_push_duration_in_millis": 120},
      "queue": {"type": "persisted", "events_count": 42, "capacity": {"max_queue_size_in_bytes": 1073741824, "queue_size_in_bytes": 2048}},
      "plugins": {
        "filters": [
          {"id": "suricata-non-json-drop", "name": "drop", "events": {"in": 300, "out": 0, "duration_in_millis": 5}},
          {"id": "microseg", "name": "grok", "events": {"in": 5000, "out": 5000, "duration_in_millis": 700}}
        ],
        "outputs": [
          {"id": "splunk-microseg", "name": "http", "events": {"in": 5000, "out": 4990, "duration_in_millis": 1500}, "failures": 10},
          {"id": "splunk-suricata", "name": "http", "events": {"in": 2000, "out": 2000, "duration_in_millis": 600}}
        ]
      },
      "reloads": {"successes": 2, "failures": 1, "last_success_timestamp": "2024-05-01T10:00:00Z"},
      "dead_letter_queue": {"queue_size_in_bytes": 1536, "max_queue_size_in_bytes": 1048576, "dropped_events": 4, "expired_events": 1}
    }
  }
}`

func decodeStats(t *testing.T, body string) *NodeStatsPayload {
	t.Helper()
	var p NodeStatsPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return &p
}

func TestExtract_FullPayload(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := Extract(decodeStats(t, nodeStatsJSON), at)

	ten := int64(10)
	want := types.MetricsSample{
		Timestamp: at,
		JVM: types.JVMStats{
			HeapUsedBytes:      536870912,
			HeapMaxBytes:       1073741824,
			HeapUsedPercent:    50,
			GCCollectionTimeMs: 1150,
			GCCollectionCount:  123,
			UptimeMs:           93784000,
		},
		Process: types.ProcessStats{
			CPUPercent:           12,
			OpenFileDescriptors:  210,
			MaxFileDescriptors:   65536,
			MemTotalVirtualBytes: 4294967296,
		},
		Pipeline: types.PipelineStats{
			Events: types.PipelineEvents{In: 10000, Out: 9500, Filtered: 9800, DurationMs: 4000, QueuePushDurationMs: 120},
			Queue: types.QueueStats{
				Events:   42,
				Type:     "persisted",
				Capacity: &types.QueueCapacity{MaxQueueSizeBytes: 1073741824, QueueSizeBytes: 2048},
			},
			Plugins: types.PluginGroups{
				Filters: []types.PluginStat{
					{ID: "suricata-non-json-drop", Name: "drop", Events: types.PluginEvents{In: 300, DurationMs: 5}},
					{ID: "microseg", Name: "grok", Events: types.PluginEvents{In: 5000, Out: 5000, DurationMs: 700}},
				},
				Outputs: []types.PluginStat{
					{ID: "splunk-microseg", Name: "http", Events: types.PluginEvents{In: 5000, Out: 4990, DurationMs: 1500}, Failures: &ten},
					{ID: "splunk-suricata", Name: "http", Events: types.PluginEvents{In: 2000, Out: 2000, DurationMs: 600}},
				},
			},
			Reloads: types.ReloadStats{Successes: 2, Failures: 1, LastSuccessTimestamp: "2024-05-01T10:00:00Z"},
		},
		DLQ: &types.DLQStats{QueueSizeBytes: 1536, MaxQueueSizeBytes: 1048576, DroppedEvents: 4, ExpiredEvents: 1},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Extract mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_EmptyPayloadDefaults(t *testing.T) {
	at := time.Unix(1700000000, 0)
	s := Extract(decodeStats(t, `{}`), at)

	if !s.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v", s.Timestamp, at)
	}
	if s.Pipeline.Queue.Type != "memory" {
		t.Errorf("default queue type = %q, want memory", s.Pipeline.Queue.Type)
	}
	if s.Pipeline.Plugins.Filters == nil || s.Pipeline.Plugins.Outputs == nil {
		t.Error("plugin lists should be empty, not nil")
	}
	if s.DLQ != nil {
		t.Errorf("DLQ = %+v, want nil when not reported", s.DLQ)
	}
	if s.Pipeline.Queue.Capacity != nil {
		t.Error("queue capacity should be nil when not reported")
	}
	if s.JVM != (types.JVMStats{}) {
		t.Errorf("JVM = %+v, want zero", s.JVM)
	}
}

func TestExtract_NilPayload(t *testing.T) {
	s := Extract(nil, time.Unix(0, 0))
	if s.Pipeline.Queue.Type != "memory" || s.DLQ != nil {
		t.Errorf("nil payload: got %+v", s)
	}
}

func TestExtract_PipelineSelection(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantIn int64
	}{
		{
			name:   "main wins over single pipeline and order",
			body:   `{"pipeline": {"events": {"in": 1}}, "pipelines": {"a": {"events": {"in": 2}}, "main": {"events": {"in": 3}}}}`,
			wantIn: 3,
		},
		{
			name:   "single pipeline block before named pipelines",
			body:   `{"pipeline": {"events": {"in": 1}}, "pipelines": {"a": {"events": {"in": 2}}}}`,
			wantIn: 1,
		},
		{
			name:   "first named pipeline in document order",
			body:   `{"pipelines": {"zeta": {"events": {"in": 7}}, "alpha": {"events": {"in": 8}}}}`,
			wantIn: 7,
		},
		{
			name:   "no pipelines",
			body:   `{"pipelines": {}}`,
			wantIn: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Extract(decodeStats(t, tt.body), time.Now())
			if s.Pipeline.Events.In != tt.wantIn {
				t.Errorf("events.in = %d, want %d", s.Pipeline.Events.In, tt.wantIn)
			}
		})
	}
}

func TestExtract_QueueEventsFallback(t *testing.T) {
	s := Extract(decodeStats(t, `{"pipelines": {"main": {"queue": {"events": 17}}}}`), time.Now())
	if s.Pipeline.Queue.Events != 17 {
		t.Errorf("queue events = %d, want 17 from legacy field", s.Pipeline.Queue.Events)
	}
	s = Extract(decodeStats(t, `{"pipelines": {"main": {"queue": {"events": 17, "events_count": 5}}}}`), time.Now())
	if s.Pipeline.Queue.Events != 5 {
		t.Errorf("queue events = %d, want 5 from events_count", s.Pipeline.Queue.Events)
	}
}

func TestExtract_NodeLevelDLQ(t *testing.T) {
	s := Extract(decodeStats(t, `{"dead_letter_queue": {"queue_size_in_bytes": 0}}`), time.Now())
	if s.DLQ == nil {
		t.Fatal("DLQ should be present when reported, even with zero size")
	}
	if s.DLQ.QueueSizeBytes != 0 {
		t.Errorf("DLQ size = %d, want 0", s.DLQ.QueueSizeBytes)
	}
}

func TestExtract_FailuresCopied(t *testing.T) {
	p := decodeStats(t, nodeStatsJSON)
	s := Extract(p, time.Now())
	main, _ := p.Pipelines.Get("main")
	*main.Plugins.Outputs[0].Failures = 999
	if got := s.Pipeline.Plugins.Outputs[0].FailureCount(); got != 10 {
		t.Errorf("sample failures changed with payload: got %d, want 10", got)
	}
}

func TestOrdered_MistypedEntryKept(t *testing.T) {
	p := decodeStats(t, `{"pipelines": {"main": {"events": {"in": "lots", "out": 4}}}}`)
	main, ok := p.Pipelines.Get("main")
	if !ok || main == nil {
		t.Fatal("main pipeline should be kept despite mistyped field")
	}
	if main.Events.In != 0 || main.Events.Out != 4 {
		t.Errorf("events = %+v, want in=0 out=4", main.Events)
	}
}

func TestOrdered_Null(t *testing.T) {
	p := decodeStats(t, `{"pipelines": null}`)
	if len(p.Pipelines) != 0 {
		t.Errorf("pipelines = %v, want empty", p.Pipelines)
	}
}

func TestOrdered_NonObjectIsEmpty(t *testing.T) {
	for _, raw := range []string{`[]`, `[{"id": "main"}]`, `"x"`, `7`, `true`} {
		t.Run(raw, func(t *testing.T) {
			p := decodeStats(t, `{"jvm": {"mem": {"heap_used_percent": 42}}, "pipelines": `+raw+`}`)
			if len(p.Pipelines) != 0 {
				t.Errorf("pipelines = %v, want empty", p.Pipelines)
			}
			if p.JVM == nil || p.JVM.Mem == nil || p.JVM.Mem.HeapUsedPercent != 42 {
				t.Errorf("jvm = %+v, want heap 42 decoded alongside", p.JVM)
			}
		})
	}
}

func TestExtractConfig(t *testing.T) {
	var info NodeInfoPayload
	body := `{
	  "version": "8.13.4",
	  "pipelines": {
	    "other": {"workers": 1},
	    "main": {"workers": 4, "batch_size": 125, "batch_delay": 50, "dead_letter_queue_enabled": true}
	  }
	}`
	if err := json.Unmarshal([]byte(body), &info); err != nil {
		t.Fatal(err)
	}
	cfg, version, ok := ExtractConfig(&info)
	if !ok {
		t.Fatal("ExtractConfig ok = false")
	}
	want := types.PipelineConfig{Workers: 4, BatchSize: 125, BatchDelay: 50, QueueType: "memory", DLQEnabled: true}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if version != "8.13.4" {
		t.Errorf("version = %q", version)
	}
}

func TestExtractConfig_NoPipelines(t *testing.T) {
	cfg, version, ok := ExtractConfig(&NodeInfoPayload{Version: "7.17.0"})
	if ok {
		t.Error("ok should be false without pipelines")
	}
	if version != "7.17.0" {
		t.Errorf("version = %q, want 7.17.0", version)
	}
	if cfg != types.DefaultPipelineConfig() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}
