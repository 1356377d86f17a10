package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultEndpoint          = "http://localhost:9600"
	DefaultRequestTimeout    = 5 * time.Second
	DefaultPollInterval      = 60 * time.Second
	DefaultHealthInterval    = 10 * time.Second
	DefaultBufferSize        = 720 // 12h of 60s samples
	DefaultUnreachableAfter  = 30 * time.Second
	DefaultHeapPercent       = 90.0
	DefaultStuckWindow       = 5
	DefaultStuckMinDuration  = 300 * time.Second
	DefaultLogProfile        = "all"
	DefaultHTTPPort          = 8080
	DefaultGRPCPort          = 50051
	DefaultBroadcastInterval = 5 * time.Second
	DefaultCertCheckTimeout  = 10 * time.Second
	DefaultAlertCooldown     = 15 * time.Minute
	DefaultLogLevel          = "info"
)

// Config is the top-level sidecar configuration.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Logstash LogstashConfig `yaml:"logstash"`
	Polling  PollingConfig  `yaml:"polling"`
	Health   HealthConfig   `yaml:"health"`
	Output   OutputConfig   `yaml:"output"`
	Server   ServerConfig   `yaml:"server"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Log      LogConfig      `yaml:"log"`
}

// LogstashConfig describes the monitored Logstash node.
type LogstashConfig struct {
	// Endpoint is the base URL of the Logstash monitoring API.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds every request to the monitoring API.
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures how the sidecar authenticates to Logstash.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for the Logstash API.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header the API key is sent in (Mode == "apikey").
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username.
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	return lookupEnv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	return lookupEnv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	return lookupEnv(a.PasswordEnv)
}

// TLSConfig holds TLS dial options for the Logstash endpoint.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// CheckCert enables the periodic certificate expiry check for https endpoints.
	CheckCert bool `yaml:"check_cert"`
}

// PollingConfig controls the two polling cycles and history retention.
type PollingConfig struct {
	// Interval is the full-poll period; one sample is kept per poll.
	Interval time.Duration `yaml:"interval"`

	// HealthInterval is the reachability-poll period.
	HealthInterval time.Duration `yaml:"health_interval"`

	// BufferSize caps the retained samples and deltas.
	BufferSize int `yaml:"buffer_size"`
}

// HealthConfig holds the health evaluator thresholds.
type HealthConfig struct {
	UnreachableAfter time.Duration `yaml:"unreachable_after"`
	HeapPercent      float64       `yaml:"heap_percent"`
	StuckWindow      int           `yaml:"stuck_window"`
	StuckMinDuration time.Duration `yaml:"stuck_min_duration"`
}

// OutputConfig describes where the monitored pipeline ships events.
type OutputConfig struct {
	// LogProfile is a free-form label of which log types are enabled.
	LogProfile string `yaml:"log_profile"`

	// Destinations maps an output type (splunk-hec, azure-log-ingestion,
	// webhook-test, dynatrace) to its host or URL for display.
	Destinations map[string]string `yaml:"destinations"`
}

// ServerConfig holds the sidecar's own listeners.
type ServerConfig struct {
	// HTTPPort is the port the REST API, metrics and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// GRPCPort is the port of the gRPC health service. 0 disables it.
	GRPCPort int `yaml:"grpc_port"`

	// Auth configures API-key authentication of incoming requests.
	Auth ServerAuthConfig `yaml:"auth"`

	// BroadcastInterval is how often stats are pushed to WebSocket clients.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

// ServerAuthConfig configures inbound authentication.
type ServerAuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable holding the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header (and gRPC metadata key) the key is read from.
	Header string `yaml:"header"`
}

// Key returns the server API key resolved from the environment.
func (a ServerAuthConfig) Key() string {
	return lookupEnv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a ServerAuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "heap_used_pct > 85",
	// "output_eps == 0", "state == unhealthy".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	return lookupEnv(w.URLEnv)
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, applying defaults and validation.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config pre-populated with default values. It is also
// the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Logstash: LogstashConfig{
			Endpoint: DefaultEndpoint,
			Timeout:  DefaultRequestTimeout,
		},
		Polling: PollingConfig{
			Interval:       DefaultPollInterval,
			HealthInterval: DefaultHealthInterval,
			BufferSize:     DefaultBufferSize,
		},
		Health: HealthConfig{
			UnreachableAfter: DefaultUnreachableAfter,
			HeapPercent:      DefaultHeapPercent,
			StuckWindow:      DefaultStuckWindow,
			StuckMinDuration: DefaultStuckMinDuration,
		},
		Output: OutputConfig{
			LogProfile: DefaultLogProfile,
		},
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			GRPCPort:          DefaultGRPCPort,
			BroadcastInterval: DefaultBroadcastInterval,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// validate checks required fields and structural constraints, and fills
// per-rule defaults.
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Logstash.Endpoint)
	if err != nil || u.Host == "" {
		return fmt.Errorf("logstash.endpoint %q is not a valid URL", cfg.Logstash.Endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("logstash.endpoint: unsupported scheme %q", u.Scheme)
	}
	if cfg.Logstash.Timeout <= 0 {
		return fmt.Errorf("logstash.timeout must be positive")
	}
	switch cfg.Logstash.Auth.Mode {
	case "mtls", "apikey", "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("logstash.auth: unknown mode %q", cfg.Logstash.Auth.Mode)
	}
	if cfg.Logstash.Auth.Mode == "apikey" && cfg.Logstash.Auth.Header == "" {
		return fmt.Errorf("logstash.auth: header is required for apikey mode")
	}
	if cfg.Logstash.Auth.Mode == "mtls" && (cfg.Logstash.Auth.CertFile == "" || cfg.Logstash.Auth.KeyFile == "") {
		return fmt.Errorf("logstash.auth: cert_file and key_file are required for mtls mode")
	}

	if cfg.Polling.Interval <= 0 {
		return fmt.Errorf("polling.interval must be positive")
	}
	if cfg.Polling.HealthInterval <= 0 {
		return fmt.Errorf("polling.health_interval must be positive")
	}
	if cfg.Polling.BufferSize <= 0 {
		return fmt.Errorf("polling.buffer_size must be positive")
	}

	if cfg.Health.UnreachableAfter <= 0 {
		return fmt.Errorf("health.unreachable_after must be positive")
	}
	if cfg.Health.HeapPercent <= 0 || cfg.Health.HeapPercent > 100 {
		return fmt.Errorf("health.heap_percent must be in (0, 100]")
	}
	if cfg.Health.StuckWindow <= 0 {
		return fmt.Errorf("health.stuck_window must be positive")
	}
	if cfg.Health.StuckMinDuration < 0 {
		return fmt.Errorf("health.stuck_min_duration must not be negative")
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", cfg.Server.HTTPPort)
	}
	if cfg.Server.GRPCPort < 0 || cfg.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d out of range", cfg.Server.GRPCPort)
	}
	if cfg.Server.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth: unknown mode %q", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Auth.Mode == "apikey" && cfg.Server.Auth.KeyEnv == "" {
		return fmt.Errorf("server.auth: key_env is required for apikey mode")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}

	for i := range cfg.Alerts.Rules {
		r := &cfg.Alerts.Rules[i]
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("alerts.rules[%d] %q: condition is required", i, r.Name)
		}
		switch r.Severity {
		case "critical", "warning", "info":
		case "":
			r.Severity = "warning"
		default:
			return fmt.Errorf("alerts.rules[%d] %q: unknown severity %q", i, r.Name, r.Severity)
		}
		if r.Cooldown == 0 {
			r.Cooldown = DefaultAlertCooldown
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "teams", "slack", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}
