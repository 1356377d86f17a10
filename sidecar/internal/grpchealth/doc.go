// Package grpchealth exposes Logstash health through the standard
// grpc.health.v1 service, so gRPC-aware load balancers and orchestrators
// can check the sidecar.
//
// Both the overall service ("") and ServiceName report SERVING while the
// node is healthy or degraded, and NOT_SERVING when it is unhealthy.
package grpchealth
