package scraper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/obsidianstack/sidecar/sidecar/internal/config"
)

// Logstash monitoring API paths.
const (
	pathNodeStats  = "/_node/stats"
	pathNodeInfo   = "/_node"
	pathHotThreads = "/_node/hot_threads?human=true"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 32 << 20

// RemoteError is returned when the monitoring API answers with a non-2xx status.
type RemoteError struct {
	Path       string
	StatusCode int
	Status     string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("scraper: GET %s: unexpected status %s", e.Path, e.Status)
}

// TimeoutError is returned when a request does not complete within the
// client timeout. The in-flight request has been cancelled.
type TimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("scraper: GET %s: timed out after %s", e.Path, e.Timeout)
}

// Unwrap lets errors.Is(err, context.DeadlineExceeded) match.
func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// Client issues time-bounded requests to the Logstash monitoring API.
// It performs no retries; callers retry on their next cycle.
type Client struct {
	base    string
	timeout time.Duration
	http    *http.Client
}

// NewClient builds a Client for the configured endpoint, auth and TLS options.
// The HTTP client is built once and reused across calls.
func NewClient(ls config.LogstashConfig) (*Client, error) {
	hc, err := buildHTTPClient(ls)
	if err != nil {
		return nil, fmt.Errorf("scraper: build http client: %w", err)
	}
	timeout := ls.Timeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	return &Client{
		base:    strings.TrimRight(ls.Endpoint, "/"),
		timeout: timeout,
		http:    hc,
	}, nil
}

// Endpoint returns the base URL the client talks to.
func (c *Client) Endpoint() string { return c.base }

// NodeStats fetches and decodes GET /_node/stats.
func (c *Client) NodeStats(ctx context.Context) (*NodeStatsPayload, error) {
	var p NodeStatsPayload
	if err := c.getJSON(ctx, pathNodeStats, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// NodeInfo fetches and decodes GET /_node.
func (c *Client) NodeInfo(ctx context.Context) (*NodeInfoPayload, error) {
	var p NodeInfoPayload
	if err := c.getJSON(ctx, pathNodeInfo, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// HotThreads returns the human-readable hot threads report.
func (c *Client) HotThreads(ctx context.Context) (string, error) {
	body, err := c.get(ctx, pathHotThreads, "text/plain")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.get(ctx, path, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		// A field of the wrong type leaves that field zeroed; everything
		// else is still decoded.
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			slog.Debug("scraper: ignoring mistyped field",
				"path", path, "field", typeErr.Field, "err", err)
			return nil
		}
		return fmt.Errorf("scraper: GET %s: decode JSON: %w", path, err)
	}
	return nil
}

// get performs one GET under the client timeout and returns the body.
func (c *Client) get(ctx context.Context, path, accept string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: GET %s: build request: %w", path, err)
	}
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.wrapErr(ctx, reqCtx, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &RemoteError{Path: path, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.wrapErr(ctx, reqCtx, path, err)
	}
	return body, nil
}

// wrapErr turns an expiry of the per-request deadline into a TimeoutError.
// Cancellation of the caller's own context is reported as-is.
func (c *Client) wrapErr(parent, reqCtx context.Context, path string, err error) error {
	if parent.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Path: path, Timeout: c.timeout}
	}
	return fmt.Errorf("scraper: GET %s: %w", path, err)
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the endpoint's auth and TLS
// settings. The timeout is enforced per request through the context.
func buildHTTPClient(ls config.LogstashConfig) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: ls.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if ls.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(ls.Auth.CertFile, ls.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if ls.Auth.CAFile != "" {
			caPEM, err := os.ReadFile(ls.Auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", ls.Auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			auth: ls.Auth,
		},
	}, nil
}
