// Package store is the in-memory core of the sidecar: it polls Logstash on
// two independent cycles and keeps the bounded history that every read
// query is answered from.
//
// Cycles:
//   - node info, once on Start; failure leaves the default pipeline config
//   - full poll, immediately on Start and every PollInterval (60s): append a
//     sample and a delta to their rings, recompute the per-category
//     breakdown, refresh last contact, detect the output type until known
//   - reachability poll, every HealthInterval (10s): refresh last contact
//
// A tick is skipped while the previous run of the same cycle is still in
// flight. Poll errors never escape; they are logged and counted in
// PollerStatus. Health is evaluated on read, not on a timer.
//
// Ring[T] is the fixed-capacity FIFO buffer behind both histories
// (default 720 entries, 12h at 60s).
package store
