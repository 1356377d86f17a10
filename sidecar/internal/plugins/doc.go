// Package plugins classifies Logstash plugin ids into log-type categories.
//
// The lookup tables mirror the `id =>` directives of the shipped filter and
// output configs and are never modified at runtime:
//   - filter, Azure ASIM filter and output ids → category
//   - drop filter ids → category + human-readable reason
//   - output id prefixes → output type (splunk-hec, azure-log-ingestion, ...)
//   - shared output ids → the several categories they carry
//
// Lookups of unknown ids never fail; they report "no category".
package plugins
