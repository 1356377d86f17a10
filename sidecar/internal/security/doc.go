// Package security checks the TLS certificate of an https Logstash
// endpoint. The result is attached to every stats snapshot.
package security
