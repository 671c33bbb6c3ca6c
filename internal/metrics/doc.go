// Package metrics carries nest service counters and timings.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check. PrometheusRecorder backs
// the /metrics endpoint of the admin server; ExpvarRecorder publishes the
// same figures through expvar for deployments without a scraper.
package metrics
