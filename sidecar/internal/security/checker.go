package security

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/obsidianstack/sidecar/pkg/types"
	"github.com/obsidianstack/sidecar/sidecar/internal/config"
)

// Certificate status values.
const (
	StatusValid       = "valid"
	StatusExpiring    = "expiring"
	StatusExpired     = "expired"
	StatusUnreachable = "unreachable"
)

// ExpiringWithin is how close to expiry a certificate is reported as expiring.
const ExpiringWithin = 30 * 24 * time.Hour

// Checker inspects the TLS certificate of the Logstash endpoint.
type Checker struct {
	ls      config.LogstashConfig
	timeout time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewChecker returns a Checker for ls. A non-positive timeout takes the
// config default.
func NewChecker(ls config.LogstashConfig, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = config.DefaultCertCheckTimeout
	}
	return &Checker{ls: ls, timeout: timeout, Now: time.Now}
}

// Check dials the endpoint and describes its leaf certificate.
//
// Returns nil for non-HTTPS endpoints. The dial is bounded by the checker
// timeout so a slow host does not stall the poll cycle.
func (c *Checker) Check(ctx context.Context) *types.CertStatus {
	u, err := url.Parse(c.ls.Endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &types.CertStatus{Endpoint: c.ls.Endpoint}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: c.ls.TLS.InsecureSkipVerify, //nolint:gosec
		},
	}
	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = StatusUnreachable
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peers := conn.ConnectionState().PeerCertificates
	if len(peers) == 0 {
		cs.Status = StatusUnreachable
		return cs
	}
	describe(cs, peers[0], c.Now())
	return cs
}

// describe fills cs from leaf as seen at now.
func describe(cs *types.CertStatus, leaf *x509.Certificate, now time.Time) {
	left := leaf.NotAfter.Sub(now)
	cs.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(left.Hours() / 24))

	switch {
	case left <= 0:
		cs.Status = StatusExpired
	case left <= ExpiringWithin:
		cs.Status = StatusExpiring
	default:
		cs.Status = StatusValid
	}
}
