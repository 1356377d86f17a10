// Package compute derives rates, per-category breakdowns and health from
// MetricsSamples. Everything here is a pure function; state lives in the
// store.
//
// delta.go: Delta(prev, curr) computes the interval and input/output events
// per second between two adjacent samples. Rates are 0 for a non-positive
// interval; counter resets pass through as negative values with
// CounterReset set.
//
// logtypes.go: LogTypes(curr, prev) classifies filter and output plugins by
// category and reports received = sent + dropped + failed per category,
// drop reasons sorted by count, and EPS from the change in sent events.
//
// health.go: Evaluate(current, recent, lastContact, now, thresholds) returns
// unhealthy when the node is unreachable, degraded with ordered reasons for
// heap, DLQ, output failures and a stuck pipeline, else healthy.
package compute
