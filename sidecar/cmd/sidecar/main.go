package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/obsidianstack/sidecar/sidecar/internal/alerts"
	"github.com/obsidianstack/sidecar/sidecar/internal/api"
	"github.com/obsidianstack/sidecar/sidecar/internal/auth"
	"github.com/obsidianstack/sidecar/sidecar/internal/compute"
	"github.com/obsidianstack/sidecar/sidecar/internal/config"
	"github.com/obsidianstack/sidecar/sidecar/internal/exporter"
	"github.com/obsidianstack/sidecar/sidecar/internal/grpchealth"
	"github.com/obsidianstack/sidecar/sidecar/internal/scraper"
	"github.com/obsidianstack/sidecar/sidecar/internal/security"
	"github.com/obsidianstack/sidecar/sidecar/internal/store"
	"github.com/obsidianstack/sidecar/sidecar/internal/ws"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file; empty runs with built-in defaults")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("logstash-sidecar starting", "config", *configPath)

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	setLevel(&level, cfg.Log.Level)

	slog.Info("config loaded",
		"endpoint", cfg.Logstash.Endpoint,
		"auth_mode", cfg.Logstash.Auth.Mode,
		"poll_interval", cfg.Polling.Interval,
		"health_interval", cfg.Polling.HealthInterval,
		"http_port", cfg.Server.HTTPPort,
		"grpc_port", cfg.Server.GRPCPort,
		"alert_rules", len(cfg.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *configPath, &level); err != nil {
		slog.Error("logstash-sidecar stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("logstash-sidecar shut down")
}

func run(ctx context.Context, cfg *config.Config, configPath string, level *slog.LevelVar) error {
	client, err := scraper.NewClient(cfg.Logstash)
	if err != nil {
		return fmt.Errorf("build logstash client: %w", err)
	}

	opts := store.Options{
		PollInterval:   cfg.Polling.Interval,
		HealthInterval: cfg.Polling.HealthInterval,
		BufferSize:     cfg.Polling.BufferSize,
		Thresholds:     thresholds(cfg.Health),
		LogProfile:     cfg.Output.LogProfile,
		Destinations:   cfg.Output.Destinations,
	}
	if cfg.Logstash.TLS.CheckCert {
		opts.CertCheck = security.NewChecker(cfg.Logstash, config.DefaultCertCheckTimeout).Check
	}
	st := store.New(client, opts)

	// Alerts and gRPC health follow every poll cycle.
	alertEngine := alerts.New(cfg.Alerts)
	alertEngine.Source = cfg.Logstash.Endpoint
	st.Subscribe(alertEngine.Evaluate)

	var healthSrv *grpchealth.Server
	if cfg.Server.GRPCPort > 0 {
		healthSrv = grpchealth.New(cfg.Server.Auth)
		st.Subscribe(healthSrv.Update)
	}

	hub := ws.New(st, cfg.Server.BroadcastInterval)

	mux := http.NewServeMux()
	mux.Handle("/api/", api.New(st, alertEngine))
	mux.Handle("/metrics", exporter.New(st))
	mux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           auth.Middleware(cfg.Server.Auth, mux, "/api/health"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		st.Run(gctx)
		return nil
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	if healthSrv != nil {
		g.Go(func() error {
			return healthSrv.Serve(gctx, cfg.Server.GRPCPort)
		})
	}
	if configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, configPath, func(updated *config.Config) {
				applyReload(cfg, updated, st, alertEngine, level)
			})
		})
	}

	return g.Wait()
}

// applyReload applies the settings that can change at runtime. Everything
// else needs a restart.
func applyReload(current, updated *config.Config, st *store.Store, alertEngine *alerts.Engine, level *slog.LevelVar) {
	st.SetThresholds(thresholds(updated.Health))
	alertEngine.SetRules(updated.Alerts)
	setLevel(level, updated.Log.Level)

	if updated.Logstash.Endpoint != current.Logstash.Endpoint ||
		updated.Polling != current.Polling ||
		updated.Server.HTTPPort != current.Server.HTTPPort ||
		updated.Server.GRPCPort != current.Server.GRPCPort {
		slog.Warn("config hot-reloaded; endpoint, polling and listener changes take effect after restart")
		return
	}
	slog.Info("config hot-reloaded",
		"heap_percent", updated.Health.HeapPercent,
		"alert_rules", len(updated.Alerts.Rules))
}

func thresholds(h config.HealthConfig) compute.Thresholds {
	return compute.Thresholds{
		UnreachableAfter: h.UnreachableAfter,
		HeapPercent:      h.HeapPercent,
		StuckWindow:      h.StuckWindow,
		StuckMinDuration: h.StuckMinDuration,
	}
}

func setLevel(v *slog.LevelVar, s string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		slog.Warn("unknown log level, using info", "level", s)
		l = slog.LevelInfo
	}
	v.Set(l)
}
