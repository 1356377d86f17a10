package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/obsidianstack/sidecar/pkg/types"
	"github.com/obsidianstack/sidecar/sidecar/internal/compute"
	"github.com/obsidianstack/sidecar/sidecar/internal/config"
	"github.com/obsidianstack/sidecar/sidecar/internal/plugins"
	"github.com/obsidianstack/sidecar/sidecar/internal/scraper"
)

// healthDeltas is how many recent deltas are handed to the health evaluator.
const healthDeltas = 10

// Client is the subset of the Logstash API the store polls.
// *scraper.Client satisfies it.
type Client interface {
	NodeStats(ctx context.Context) (*scraper.NodeStatsPayload, error)
	NodeInfo(ctx context.Context) (*scraper.NodeInfoPayload, error)
	HotThreads(ctx context.Context) (string, error)
}

// CertChecker reports the TLS certificate status of the Logstash endpoint.
// It returns nil when there is nothing to inspect.
type CertChecker func(ctx context.Context) *types.CertStatus

// Options configures a Store. Zero fields take the config package defaults.
type Options struct {
	PollInterval   time.Duration
	HealthInterval time.Duration
	BufferSize     int
	Thresholds     compute.Thresholds
	LogProfile     string
	Destinations   map[string]string

	// CertCheck runs on every full poll when set.
	CertCheck CertChecker

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Store owns the polling cycles and the in-memory history, and answers
// read queries from the API, exporter, alerts and WebSocket hub.
//
// All exported methods are safe for concurrent use. Reads never block on
// the network.
type Store struct {
	client Client
	opts   Options
	now    func() time.Time

	mu          sync.RWMutex
	samples     *Ring[types.MetricsSample]
	deltas      *Ring[types.MetricsDelta]
	latest      *types.MetricsSample
	lastContact time.Time
	pipeline    types.PipelineConfig
	version     string
	outputType  string
	logTypes    []types.LogTypeDelta
	poller      types.PollerStatus
	cert        *types.CertStatus
	thresholds  compute.Thresholds

	subsMu sync.Mutex
	subs   []func(types.StatsSnapshot)

	lifeMu  sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// in-flight guards; a tick is skipped while the previous run of the
	// same cycle has not returned.
	fullBusy   atomic.Bool
	healthBusy atomic.Bool
}

// New returns a Store that polls client. Polling begins with Start.
func New(client Client, opts Options) *Store {
	if opts.PollInterval <= 0 {
		opts.PollInterval = config.DefaultPollInterval
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = config.DefaultHealthInterval
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = config.DefaultBufferSize
	}
	if opts.Thresholds == (compute.Thresholds{}) {
		opts.Thresholds = compute.DefaultThresholds()
	}
	if opts.LogProfile == "" {
		opts.LogProfile = config.DefaultLogProfile
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		client:     client,
		opts:       opts,
		now:        now,
		samples:    NewRing[types.MetricsSample](opts.BufferSize),
		deltas:     NewRing[types.MetricsDelta](opts.BufferSize),
		pipeline:   types.DefaultPipelineConfig(),
		outputType: plugins.OutputTypeUnknown,
		logTypes:   []types.LogTypeDelta{},
		thresholds: opts.Thresholds,
	}
}

// Start fetches node info once, runs a full poll immediately and then
// schedules the full and reachability cycles. It returns at once; a second
// call while running is a no-op.
func (s *Store) Start(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.fetchNodeInfo(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.pollFull(ctx)
		s.loop(ctx, s.opts.PollInterval, s.pollFull)
	}()
	go func() {
		defer s.wg.Done()
		s.loop(ctx, s.opts.HealthInterval, s.pollReachability)
	}()

	slog.Info("store: polling started",
		"poll_interval", s.opts.PollInterval,
		"health_interval", s.opts.HealthInterval,
		"buffer_size", s.opts.BufferSize)
}

// Stop halts both cycles and waits for in-flight polls to return.
// Stop on a stopped Store is a no-op; Start may be called again afterwards.
func (s *Store) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if !s.started {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.started = false
	slog.Info("store: polling stopped")
}

// Run starts the store and blocks until ctx is cancelled, then stops it.
func (s *Store) Run(ctx context.Context) {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
}

func (s *Store) loop(ctx context.Context, interval time.Duration, poll func(context.Context)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			poll(ctx)
		}
	}
}

// Subscribe registers fn to receive a stats snapshot after every poll.
// fn runs on the polling goroutine and must not block.
func (s *Store) Subscribe(fn func(types.StatsSnapshot)) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) notify() {
	s.subsMu.Lock()
	subs := make([]func(types.StatsSnapshot), len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()
	if len(subs) == 0 {
		return
	}

	snap := s.Stats()
	for _, fn := range subs {
		fn(snap)
	}
}

// SetThresholds replaces the health thresholds, e.g. after a config reload.
func (s *Store) SetThresholds(th compute.Thresholds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds = th
}

// fetchNodeInfo populates the pipeline config and version. On failure the
// defaults stay in place for the life of the process.
func (s *Store) fetchNodeInfo(ctx context.Context) {
	info, err := s.client.NodeInfo(ctx)
	if err != nil {
		slog.Warn("store: node info fetch failed, keeping default pipeline config", "err", err)
		return
	}
	cfg, version, ok := scraper.ExtractConfig(info)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.pipeline = cfg
	}
	s.version = version
	slog.Info("store: node info loaded", "version", version, "workers", cfg.Workers, "pipeline_found", ok)
}

// pollFull fetches node stats, appends a sample and delta, and recomputes
// the per-category breakdown. A failure leaves history untouched.
func (s *Store) pollFull(ctx context.Context) {
	if !s.fullBusy.CompareAndSwap(false, true) {
		slog.Warn("store: previous full poll still running, skipping tick")
		return
	}
	defer s.fullBusy.Store(false)

	payload, err := s.client.NodeStats(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.recordFailure(err)
		slog.Warn("store: full poll failed", "err", err)
		s.notify()
		return
	}

	var cert *types.CertStatus
	if s.opts.CertCheck != nil {
		cert = s.opts.CertCheck(ctx)
	}

	now := s.now()
	sample := scraper.Extract(payload, now)

	s.mu.Lock()
	prev := s.latest
	if evicted := s.samples.Push(sample); evicted {
		slog.Debug("store: sample buffer full, evicted oldest")
	}
	if prev != nil {
		d := compute.Delta(*prev, sample)
		if d.CounterReset {
			slog.Info("store: pipeline counters went backwards, Logstash likely restarted",
				"events_in_delta", d.Pipeline.EventsIn, "events_out_delta", d.Pipeline.EventsOut)
		}
		s.deltas.Push(d)
	}
	s.logTypes = compute.LogTypes(sample, prev)
	s.latest = &sample
	s.lastContact = now
	if s.outputType == plugins.OutputTypeUnknown {
		ids := make([]string, 0, len(sample.Pipeline.Plugins.Outputs))
		for _, o := range sample.Pipeline.Plugins.Outputs {
			ids = append(ids, o.ID)
		}
		s.outputType = plugins.DetectOutputType(ids)
		if s.outputType != plugins.OutputTypeUnknown {
			slog.Info("store: output type detected", "output_type", s.outputType)
		}
	}
	if cert != nil {
		s.cert = cert
	}
	s.recordSuccessLocked(now)
	s.mu.Unlock()

	slog.Debug("store: full poll complete",
		"events_in", sample.Pipeline.Events.In,
		"events_out", sample.Pipeline.Events.Out)
	s.notify()
}

// pollReachability refreshes the last-contact time and discards the payload.
func (s *Store) pollReachability(ctx context.Context) {
	if !s.healthBusy.CompareAndSwap(false, true) {
		slog.Debug("store: previous reachability poll still running, skipping tick")
		return
	}
	defer s.healthBusy.Store(false)

	if _, err := s.client.NodeStats(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.recordFailure(err)
		slog.Warn("store: reachability poll failed", "err", err)
		s.notify()
		return
	}

	now := s.now()
	s.mu.Lock()
	s.lastContact = now
	s.recordSuccessLocked(now)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) recordFailure(err error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poller.TotalPolls++
	s.poller.TotalFailures++
	s.poller.ConsecutiveFailures++
	s.poller.LastErrorAt = now
	s.poller.LastError = err.Error()
}

func (s *Store) recordSuccessLocked(now time.Time) {
	s.poller.TotalPolls++
	s.poller.ConsecutiveFailures = 0
	s.poller.LastSuccessAt = now
}

// Health evaluates current health from stored state.
func (s *Store) Health() types.HealthResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthLocked(s.now())
}

func (s *Store) healthLocked(now time.Time) types.HealthResult {
	return compute.Evaluate(s.latest, s.deltas.LastN(healthDeltas), s.lastContact, now, s.thresholds)
}

// LatestSample returns the newest sample, if any.
func (s *Store) LatestSample() (types.MetricsSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return types.MetricsSample{}, false
	}
	return *s.latest, true
}

// Buffer returns a copy of every retained sample, oldest first. Samples
// share plugin slices with the store and must be treated as read-only.
func (s *Store) Buffer() []types.MetricsSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.samples.Slice()
}

// Deltas returns a copy of every retained delta, oldest first.
func (s *Store) Deltas() []types.MetricsDelta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deltas.Slice()
}

// OutputPlugins returns the output plugin stats of the latest sample.
func (s *Store) OutputPlugins() []types.PluginStat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return []types.PluginStat{}
	}
	out := make([]types.PluginStat, len(s.latest.Pipeline.Plugins.Outputs))
	copy(out, s.latest.Pipeline.Plugins.Outputs)
	return out
}

// PollerStatus returns the poll success and failure counters.
func (s *Store) PollerStatus() types.PollerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poller
}

// HotThreads fetches the hot threads report directly from Logstash.
// Unlike the other reads it goes to the network.
func (s *Store) HotThreads(ctx context.Context) (string, error) {
	return s.client.HotThreads(ctx)
}
