package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/obsidianstack/sidecar/pkg/types"
	"github.com/obsidianstack/sidecar/sidecar/internal/plugins"
)

// Range is a history look-back window.
type Range string

const (
	Range1h  Range = "1h"
	Range6h  Range = "6h"
	Range12h Range = "12h"
	Range24h Range = "24h"
)

var rangeDurations = map[Range]time.Duration{
	Range1h:  time.Hour,
	Range6h:  6 * time.Hour,
	Range12h: 12 * time.Hour,
	Range24h: 24 * time.Hour,
}

// ErrInvalidRange is returned by ParseRange for unsupported windows.
var ErrInvalidRange = errors.New("store: invalid range, use one of 1h, 6h, 12h, 24h")

// ParseRange validates a look-back window.
func ParseRange(s string) (Range, error) {
	r := Range(s)
	if _, ok := rangeDurations[r]; !ok {
		return "", ErrInvalidRange
	}
	return r, nil
}

// Duration returns the window length, or 0 for an unknown Range.
func (r Range) Duration() time.Duration {
	return rangeDurations[r]
}

// History returns the deltas newer than now minus the window, oldest first.
// A delta exactly at the cutoff is excluded.
func (s *Store) History(r Range) []types.MetricsDelta {
	cutoff := s.now().Add(-r.Duration())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deltas.Filter(func(d types.MetricsDelta) bool {
		return d.Timestamp.After(cutoff)
	})
}

// Stats returns the aggregate snapshot. Every field is read under one lock
// so the snapshot is consistent.
func (s *Store) Stats() types.StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked(s.now())
}

func (s *Store) statsLocked(now time.Time) types.StatsSnapshot {
	snap := types.StatsSnapshot{
		Health:      s.healthLocked(now),
		OutputType:  s.outputType,
		Destination: plugins.DestinationLabel(s.outputType, s.opts.Destinations),
		LogProfile:  s.opts.LogProfile,
		Uptime:      "0s",
		Version:     s.version,
		Pipeline:    types.PipelineSummary{QueueType: "memory"},
		LogTypes:    append([]types.LogTypeDelta(nil), s.logTypes...),
		Config:      s.pipeline,
		Poller:      s.poller,
	}
	if snap.LogTypes == nil {
		snap.LogTypes = []types.LogTypeDelta{}
	}
	if s.cert != nil {
		c := *s.cert
		snap.Cert = &c
	}

	hourAgo := now.Add(-time.Hour)
	var sum float64
	var n int
	for i := 0; i < s.deltas.Len(); i++ {
		if d := s.deltas.At(i); d.Timestamp.After(hourAgo) {
			sum += d.OutputEPS
			n++
		}
	}
	if n > 0 {
		snap.Pipeline.AvgEPS1h = sum / float64(n)
	}
	if d, ok := s.deltas.Last(); ok {
		snap.Pipeline.InputEPS = d.InputEPS
		snap.Pipeline.OutputEPS = d.OutputEPS
	}

	cur := s.latest
	if cur == nil {
		return snap
	}
	snap.Uptime = formatUptime(cur.JVM.UptimeMs)
	snap.Pipeline.EventsIn = cur.Pipeline.Events.In
	snap.Pipeline.EventsOut = cur.Pipeline.Events.Out
	snap.Pipeline.QueueEvents = cur.Pipeline.Queue.Events
	snap.Pipeline.QueueType = cur.Pipeline.Queue.Type
	if c := cur.Pipeline.Queue.Capacity; c != nil {
		snap.Pipeline.QueueSizeBytes = c.QueueSizeBytes
		snap.Pipeline.QueueMaxBytes = c.MaxQueueSizeBytes
	}
	for _, o := range cur.Pipeline.Plugins.Outputs {
		snap.Pipeline.OutputFailures += o.FailureCount()
	}
	snap.JVM = types.JVMSummary{
		HeapUsedBytes:      cur.JVM.HeapUsedBytes,
		HeapMaxBytes:       cur.JVM.HeapMaxBytes,
		HeapUsedPercent:    cur.JVM.HeapUsedPercent,
		GCCollectionTimeMs: cur.JVM.GCCollectionTimeMs,
		GCCollectionCount:  cur.JVM.GCCollectionCount,
	}
	snap.Process = types.ProcessSummary{
		CPUPercent:          cur.Process.CPUPercent,
		OpenFileDescriptors: cur.Process.OpenFileDescriptors,
		MaxFileDescriptors:  cur.Process.MaxFileDescriptors,
	}
	if cur.DLQ != nil {
		snap.DLQ = *cur.DLQ
	}
	return snap
}

// formatUptime renders milliseconds as "Nd Nh Nm", "Nh Nm" or "Nm".
func formatUptime(ms int64) string {
	secs := ms / 1000
	days := secs / 86400
	hours := (secs % 86400) / 3600
	mins := (secs % 3600) / 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
