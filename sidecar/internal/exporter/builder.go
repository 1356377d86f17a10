package exporter

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/obsidianstack/sidecar/pkg/types"
)

// builder accumulates metric families under the logstash_ namespace.
type builder struct {
	families []*dto.MetricFamily
}

func (b *builder) family(name, help string, t dto.MetricType) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: ptr(namespace + "_" + name),
		Help: ptr(help),
		Type: t.Enum(),
	}
	b.families = append(b.families, mf)
	return mf
}

func (b *builder) gauge(name, help string, v float64) {
	mf := b.family(name, help, dto.MetricType_GAUGE)
	mf.Metric = append(mf.Metric, gaugeMetric(v))
}

func (b *builder) counter(name, help string, v float64) {
	mf := b.family(name, help, dto.MetricType_COUNTER)
	mf.Metric = append(mf.Metric, counterMetric(v))
}

func (b *builder) info(snap types.StatsSnapshot) {
	mf := b.family("info", "Logstash node and sidecar metadata.", dto.MetricType_GAUGE)
	mf.Metric = append(mf.Metric, gaugeMetric(1,
		label("log_profile", snap.LogProfile),
		label("output_type", snap.OutputType),
		label("version", snap.Version),
	))
}

func (b *builder) logTypes(lts []types.LogTypeDelta) {
	received := b.family("log_type_received_total", "Events received per log type.", dto.MetricType_COUNTER)
	dropped := b.family("log_type_dropped_total", "Events dropped by filters per log type.", dto.MetricType_COUNTER)
	sent := b.family("log_type_sent_total", "Events sent by outputs per log type.", dto.MetricType_COUNTER)
	failed := b.family("log_type_failed_total", "Output failures per log type.", dto.MetricType_COUNTER)
	eps := b.family("log_type_eps", "Events sent per second per log type.", dto.MetricType_GAUGE)
	reasons := b.family("log_type_dropped_by_reason_total", "Events dropped per log type and reason.", dto.MetricType_COUNTER)

	for _, lt := range lts {
		l := label("log_type", string(lt.LogType))
		received.Metric = append(received.Metric, counterMetric(float64(lt.Received), l))
		dropped.Metric = append(dropped.Metric, counterMetric(float64(lt.Dropped), l))
		sent.Metric = append(sent.Metric, counterMetric(float64(lt.Sent), l))
		failed.Metric = append(failed.Metric, counterMetric(float64(lt.Failed), l))
		eps.Metric = append(eps.Metric, gaugeMetric(lt.EPS, l))
		for _, r := range lt.DropReasons {
			reasons.Metric = append(reasons.Metric,
				counterMetric(float64(r.Count), l, label("reason", r.Reason)))
		}
	}
}

// result returns the non-empty families; the text encoder rejects empty ones.
func (b *builder) result() []*dto.MetricFamily {
	out := make([]*dto.MetricFamily, 0, len(b.families))
	for _, mf := range b.families {
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}
	return out
}

func gaugeMetric(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: ptr(v)}}
}

func counterMetric(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Counter: &dto.Counter{Value: ptr(v)}}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: ptr(name), Value: ptr(value)}
}

func ptr[T any](v T) *T { return &v }
