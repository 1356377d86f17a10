// Package config loads and watches the sidecar configuration file (config.yaml).
//
// Top-level sections:
//   - logstash: endpoint, timeout, auth (mtls|apikey|bearer|basic|none), tls
//   - polling: interval (60s), health_interval (10s), buffer_size (720)
//   - health: unreachable_after (30s), heap_percent (90), stuck_window (5),
//     stuck_min_duration (300s)
//   - output: log_profile, destinations (output type → host or URL)
//   - server: http_port (8080), grpc_port (50051), auth, broadcast_interval
//   - alerts: rules and webhooks
//   - log: level
//
// Secrets are never stored in the file: key_env, token_env, password_env and
// url_env name environment variables that are resolved on use.
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) reloads the file on change using fsnotify;
// an invalid file is logged and ignored.
package config
