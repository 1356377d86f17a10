package exporter

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/sidecar/pkg/types"
)

const namespace = "logstash"

// StatsSource supplies the snapshot to expose. *store.Store satisfies it.
type StatsSource interface {
	Stats() types.StatsSnapshot
}

// Handler serves the Prometheus text exposition of the current snapshot.
type Handler struct {
	src StatsSource
}

// New returns a Handler reading from src.
func New(src StatsSource) *Handler {
	return &Handler{src: src}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := Write(&buf, Families(h.src.Stats())); err != nil {
		slog.Error("exporter: encode metrics", "err", err)
		http.Error(w, "failed to encode metrics", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

// Write encodes families in the text exposition format.
func Write(w io.Writer, families []*dto.MetricFamily) error {
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("exporter: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Families converts snap into metric families, in a fixed order. Families
// without samples (e.g. drop reasons when nothing was dropped) are omitted.
func Families(snap types.StatsSnapshot) []*dto.MetricFamily {
	var b builder

	up := 0.0
	if snap.Poller.ConsecutiveFailures == 0 && !snap.Poller.LastSuccessAt.IsZero() {
		up = 1
	}
	b.gauge("up", "Whether the last poll of the Logstash API succeeded.", up)
	b.info(snap)

	health := b.family("health_status", "Current health classification, 1 for the active status.", dto.MetricType_GAUGE)
	for _, st := range []types.HealthStatus{types.StatusHealthy, types.StatusDegraded, types.StatusUnhealthy} {
		v := 0.0
		if snap.Health.Status == st {
			v = 1
		}
		health.Metric = append(health.Metric, gaugeMetric(v, label("status", string(st))))
	}

	p := snap.Pipeline
	b.counter("events_in_total", "Events received by the pipeline.", float64(p.EventsIn))
	b.counter("events_out_total", "Events emitted by the pipeline.", float64(p.EventsOut))
	b.gauge("input_eps", "Input events per second over the last poll interval.", p.InputEPS)
	b.gauge("output_eps", "Output events per second over the last poll interval.", p.OutputEPS)
	b.gauge("avg_eps_1h", "Mean output events per second over the last hour.", p.AvgEPS1h)
	b.gauge("queue_events", "Events waiting in the pipeline queue.", float64(p.QueueEvents))
	b.gauge("queue_size_bytes", "On-disk size of the persisted queue.", float64(p.QueueSizeBytes))
	b.gauge("queue_max_size_bytes", "Capacity of the persisted queue.", float64(p.QueueMaxBytes))
	b.counter("output_failures_total", "Failures reported by output plugins.", float64(p.OutputFailures))

	j := snap.JVM
	b.gauge("jvm_heap_used_bytes", "JVM heap in use.", float64(j.HeapUsedBytes))
	b.gauge("jvm_heap_max_bytes", "JVM heap limit.", float64(j.HeapMaxBytes))
	b.gauge("jvm_heap_used_percent", "JVM heap in use as a percentage of the limit.", j.HeapUsedPercent)
	b.counter("jvm_gc_collection_seconds_total", "Time spent in garbage collection.", float64(j.GCCollectionTimeMs)/1000)
	b.counter("jvm_gc_collections_total", "Garbage collection runs.", float64(j.GCCollectionCount))

	pr := snap.Process
	b.gauge("process_cpu_percent", "CPU usage of the Logstash process.", pr.CPUPercent)
	b.gauge("process_open_fds", "Open file descriptors.", float64(pr.OpenFileDescriptors))
	b.gauge("process_max_fds", "File descriptor limit.", float64(pr.MaxFileDescriptors))

	d := snap.DLQ
	b.gauge("dlq_size_bytes", "Dead letter queue size.", float64(d.QueueSizeBytes))
	b.gauge("dlq_max_size_bytes", "Dead letter queue capacity.", float64(d.MaxQueueSizeBytes))
	b.counter("dlq_dropped_events_total", "Events dropped by the dead letter queue.", float64(d.DroppedEvents))
	b.counter("dlq_expired_events_total", "Events expired from the dead letter queue.", float64(d.ExpiredEvents))

	b.logTypes(snap.LogTypes)

	b.counter("poller_polls_total", "Polls of the Logstash API.", float64(snap.Poller.TotalPolls))
	b.counter("poller_failures_total", "Failed polls of the Logstash API.", float64(snap.Poller.TotalFailures))
	b.gauge("poller_consecutive_failures", "Failed polls since the last success.", float64(snap.Poller.ConsecutiveFailures))

	if c := snap.Cert; c != nil {
		cert := b.family("cert_days_left", "Days until the endpoint's TLS certificate expires.", dto.MetricType_GAUGE)
		cert.Metric = append(cert.Metric, gaugeMetric(float64(c.DaysLeft), label("status", c.Status)))
	}
	return b.result()
}
