package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/obsidianstack/sidecar/sidecar/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, ls config.LogstashConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	ls.Endpoint = srv.URL + "/"
	c, err := NewClient(ls)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestClient_NodeStats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_node/stats" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(nodeStatsJSON))
	}, config.LogstashConfig{})

	p, err := c.NodeStats(context.Background())
	if err != nil {
		t.Fatalf("NodeStats: %v", err)
	}
	if p.Version != "8.13.4" {
		t.Errorf("version = %q", p.Version)
	}
	if len(p.Pipelines) != 2 || p.Pipelines[0].Name != "aux" {
		t.Errorf("pipelines = %+v, want [aux main] in document order", p.Pipelines)
	}
}

func TestClient_NodeInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_node" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"version":"8.13.4","pipelines":{"main":{"workers":2}}}`))
	}, config.LogstashConfig{})

	p, err := c.NodeInfo(context.Background())
	if err != nil {
		t.Fatalf("NodeInfo: %v", err)
	}
	main, ok := p.Pipelines.Get("main")
	if !ok || main.Workers != 2 {
		t.Errorf("main pipeline = %+v, ok=%v", main, ok)
	}
}

func TestClient_HotThreads(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_node/hot_threads" || r.URL.Query().Get("human") != "true" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("::: {logstash}\n  Hot threads at 2024-05-01\n"))
	}, config.LogstashConfig{})

	text, err := c.HotThreads(context.Background())
	if err != nil {
		t.Fatalf("HotThreads: %v", err)
	}
	if !strings.Contains(text, "Hot threads") {
		t.Errorf("HotThreads = %q", text)
	}
}

func TestClient_RemoteError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, config.LogstashConfig{})

	_, err := c.NodeStats(context.Background())
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
	if re.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", re.StatusCode)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}, config.LogstashConfig{Timeout: 50 * time.Millisecond})
	defer close(release)

	start := time.Now()
	_, err := c.NodeStats(context.Background())
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TimeoutError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("TimeoutError should match context.DeadlineExceeded")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("request not cancelled promptly: %v", elapsed)
	}
}

func TestClient_CallerCancelIsNotTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, config.LogstashConfig{Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.NodeStats(ctx)
	if err == nil {
		t.Fatal("expected error after cancel")
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		t.Errorf("caller cancellation reported as timeout: %v", err)
	}
}

func TestClient_MalformedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jvm": {`))
	}, config.LogstashConfig{})

	if _, err := c.NodeStats(context.Background()); err == nil {
		t.Fatal("expected decode error for truncated JSON")
	}
}

func TestClient_MistypedFieldTolerated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version": 8, "process": {"open_file_descriptors": 12}}`))
	}, config.LogstashConfig{})

	p, err := c.NodeStats(context.Background())
	if err != nil {
		t.Fatalf("NodeStats: %v", err)
	}
	if p.Version != "" || p.Process == nil || p.Process.OpenFileDescriptors != 12 {
		t.Errorf("payload = %+v", p)
	}
}

func TestClient_NonObjectPipelinesTolerated(t *testing.T) {
	for _, pipelines := range []string{`[]`, `"x"`} {
		t.Run(pipelines, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"jvm": {"mem": {"heap_used_percent": 42}}, "pipelines": ` + pipelines + `}`))
			}, config.LogstashConfig{})

			p, err := c.NodeStats(context.Background())
			if err != nil {
				t.Fatalf("NodeStats: %v", err)
			}
			if len(p.Pipelines) != 0 {
				t.Errorf("pipelines = %v, want empty", p.Pipelines)
			}
			s := Extract(p, time.Unix(0, 0))
			if s.JVM.HeapUsedPercent != 42 {
				t.Errorf("heap = %v, want 42", s.JVM.HeapUsedPercent)
			}
		})
	}
}

func TestClient_AuthModes(t *testing.T) {
	t.Setenv("TEST_LS_KEY", "k1")
	t.Setenv("TEST_LS_TOKEN", "t1")
	t.Setenv("TEST_LS_PASS", "p1")

	tests := []struct {
		name  string
		auth  config.AuthConfig
		check func(*http.Request) bool
	}{
		{"apikey", config.AuthConfig{Mode: "apikey", Header: "X-Api-Key", KeyEnv: "TEST_LS_KEY"},
			func(r *http.Request) bool { return r.Header.Get("X-Api-Key") == "k1" }},
		{"bearer", config.AuthConfig{Mode: "bearer", TokenEnv: "TEST_LS_TOKEN"},
			func(r *http.Request) bool { return r.Header.Get("Authorization") == "Bearer t1" }},
		{"basic", config.AuthConfig{Mode: "basic", Username: "mon", PasswordEnv: "TEST_LS_PASS"},
			func(r *http.Request) bool {
				u, p, ok := r.BasicAuth()
				return ok && u == "mon" && p == "p1"
			}},
		{"none", config.AuthConfig{Mode: "none"},
			func(r *http.Request) bool { return r.Header.Get("Authorization") == "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if !tt.check(r) {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				_, _ = w.Write([]byte(`{}`))
			}, config.LogstashConfig{Auth: tt.auth})
			if _, err := c.NodeStats(context.Background()); err != nil {
				t.Errorf("NodeStats: %v", err)
			}
		})
	}
}

func TestNewClient_MTLSMissingCert(t *testing.T) {
	_, err := NewClient(config.LogstashConfig{
		Endpoint: "https://localhost:9600",
		Auth:     config.AuthConfig{Mode: "mtls", CertFile: "/nonexistent.crt", KeyFile: "/nonexistent.key"},
	})
	if err == nil {
		t.Fatal("expected error for missing client cert")
	}
}

func TestNewClient_TrimsEndpoint(t *testing.T) {
	c, err := NewClient(config.LogstashConfig{Endpoint: "http://localhost:9600/"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Endpoint() != "http://localhost:9600" {
		t.Errorf("Endpoint = %q", c.Endpoint())
	}
	if c.timeout != config.DefaultRequestTimeout {
		t.Errorf("timeout = %v, want default", c.timeout)
	}
}
