package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/obsidianstack/sidecar/sidecar/internal/config"
)

// guard holds the resolved settings shared by the HTTP and gRPC checks.
// In apikey mode an empty key matches nothing, so every request is rejected.
type guard struct {
	on     bool
	header string
	key    string
}

func newGuard(cfg config.ServerAuthConfig) guard {
	g := guard{on: cfg.Mode == "apikey", header: strings.ToLower(cfg.EffectiveHeader())}
	if g.on {
		g.key = cfg.Key()
		if g.key == "" {
			slog.Warn("auth: api key is empty, rejecting all requests", "key_env", cfg.KeyEnv)
		}
	}
	return g
}

func (g guard) enabled() bool { return g.on }

func (g guard) valid(got string) bool {
	return g.key != "" && got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(g.key)) == 1
}

func (g guard) checkContext(ctx context.Context) error {
	if !g.enabled() {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get(g.header)
	if len(vals) == 0 || !g.valid(vals[0]) {
		return status.Error(codes.Unauthenticated, "invalid api key")
	}
	return nil
}

// APIKeyInterceptor returns a gRPC UnaryServerInterceptor that enforces API
// key authentication on every incoming call. The key is read from the
// metadata header named by cfg (gRPC lowercases metadata keys).
func APIKeyInterceptor(cfg config.ServerAuthConfig) grpc.UnaryServerInterceptor {
	g := newGuard(cfg)
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if err := g.checkContext(ctx); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// APIKeyStreamInterceptor is the streaming counterpart of APIKeyInterceptor,
// needed for the health service's Watch method.
func APIKeyStreamInterceptor(cfg config.ServerAuthConfig) grpc.StreamServerInterceptor {
	g := newGuard(cfg)
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if err := g.checkContext(ss.Context()); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}
