// Package scraper talks to the Logstash monitoring API and normalizes its
// responses.
//
// Client issues GET /_node/stats, GET /_node and GET /_node/hot_threads with
// a per-request timeout (default 5s). A non-2xx answer returns *RemoteError;
// an expired timeout cancels the request and returns *TimeoutError. Auth
// modes mtls | apikey | bearer | basic | none are applied by a RoundTripper.
//
// Responses decode into typed payload structs (NodeStatsPayload,
// NodeInfoPayload) whose optional blocks are pointers. Extract maps a stats
// payload to a types.MetricsSample and never fails; ExtractConfig maps node
// info to types.PipelineConfig and the version string.
//
// Pipeline selection: pipelines["main"], else the single "pipeline" block,
// else the first entry of "pipelines" in document order.
package scraper
