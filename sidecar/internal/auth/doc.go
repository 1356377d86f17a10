// Package auth guards the sidecar's own listeners with an API key.
//
// Middleware wraps the HTTP mux; APIKeyInterceptor and
// APIKeyStreamInterceptor guard the gRPC health service. When the mode is
// not "apikey" or no key is configured, every request passes through.
// Otherwise a missing or wrong key is rejected with 401 or
// codes.Unauthenticated.
package auth
