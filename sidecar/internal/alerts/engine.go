package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/obsidianstack/sidecar/pkg/types"
	"github.com/obsidianstack/sidecar/sidecar/internal/config"
)

const (
	maxHistoryLen = 200
	recentWindow  = time.Hour
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Severity   string     `json:"severity"`
	Condition  string     `json:"condition"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"

	// Node context captured from the snapshot that fired or resolved the alert.
	Source      string             `json:"source,omitempty"`
	Destination string             `json:"destination,omitempty"`
	Health      types.HealthStatus `json:"health"`
	Reasons     []string           `json:"reasons,omitempty"`
}

type rule struct {
	config.AlertRule
	cond condition
}

// Engine evaluates alert rules against stats snapshots and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []rule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: rule name
	lastFire map[string]time.Time // last fire time per rule (for cooldown)
	history  []*Alert             // recently resolved alerts

	client *http.Client
	wg     sync.WaitGroup

	// Source names the monitored Logstash node in notifications.
	Source string

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New creates an Engine from the alert configuration.
// An Engine with no rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		Now:      time.Now,
	}
	e.SetRules(cfg)
	return e
}

// SetRules replaces the rules and webhooks, e.g. after a config reload.
// Rules with an unparseable condition are skipped with a warning. Active
// alerts whose rule was removed are dropped.
func (e *Engine) SetRules(cfg config.AlertsConfig) {
	rules := make([]rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		c, err := parseCondition(r.Condition)
		if err != nil {
			slog.Warn("alerts: skipping rule", "rule", r.Name, "err", err)
			continue
		}
		if r.Cooldown <= 0 {
			r.Cooldown = config.DefaultAlertCooldown
		}
		if r.Severity == "" {
			r.Severity = "warning"
		}
		rules = append(rules, rule{AlertRule: r, cond: c})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
	e.webhooks = append([]config.WebhookConfig(nil), cfg.Webhooks...)

	keep := make(map[string]bool, len(rules))
	for _, r := range rules {
		keep[r.Name] = true
	}
	for name := range e.active {
		if !keep[name] {
			delete(e.active, name)
		}
	}
	slog.Info("alerts: rules loaded", "rules", len(rules), "webhooks", len(cfg.Webhooks))
}

// Evaluate tests every rule against snap. Alerts that fire are stored and
// webhook delivery runs asynchronously. Firing alerts whose condition no
// longer holds are resolved.
func (e *Engine) Evaluate(snap types.StatsSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.rules) == 0 {
		return
	}

	now := e.Now()
	for _, r := range e.rules {
		fires, value := r.cond.eval(snap)

		if fires {
			if now.Sub(e.lastFire[r.Name]) <= r.Cooldown {
				continue
			}
			a := &Alert{
				ID:        fmt.Sprintf("%s:%d", r.Name, now.UnixNano()),
				RuleName:  r.Name,
				Severity:  r.Severity,
				Condition: r.Condition,
				Value:     value,
				Message:   fmt.Sprintf("[%s] %s fired: %s (value %.2f)", r.Severity, r.Name, r.Condition, value),
				FiredAt:   now,
				State:     StateFiring,
			}
			e.annotate(a, snap)
			e.active[r.Name] = a
			e.lastFire[r.Name] = now

			slog.Warn("alerts: alert fired",
				"rule", r.Name,
				"value", value,
				"severity", r.Severity,
			)
			e.dispatch(*a)
			continue
		}

		a, ok := e.active[r.Name]
		if !ok {
			continue
		}
		resolved := now
		a.State = StateResolved
		a.ResolvedAt = &resolved
		a.Message = fmt.Sprintf("[%s] %s resolved: %s", r.Severity, r.Name, r.Condition)
		e.annotate(a, snap)
		delete(e.active, r.Name)

		e.history = append(e.history, a)
		if len(e.history) > maxHistoryLen {
			e.history = e.history[len(e.history)-maxHistoryLen:]
		}
		slog.Info("alerts: alert resolved", "rule", r.Name)
		e.dispatch(*a)
	}
}

func (e *Engine) annotate(a *Alert, snap types.StatsSnapshot) {
	a.Source = e.Source
	a.Destination = snap.Destination
	a.Health = snap.Health.Status
	a.Reasons = append([]string(nil), snap.Health.Reasons...)
}

// dispatch delivers a copy of a to every webhook in the background.
// Caller holds e.mu.
func (e *Engine) dispatch(a Alert) {
	if len(e.webhooks) == 0 {
		return
	}
	hooks := append([]config.WebhookConfig(nil), e.webhooks...)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(hooks, &a)
	}()
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.Now().Add(-recentWindow)
	out := make([]Alert, 0, len(e.active))
	for _, a := range e.active {
		out = append(out, *a)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FiredAt.After(out[j].FiredAt)
	})
	return out
}

// Wait blocks until in-flight webhook deliveries have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}
