// Package metrics provides observability hooks for error handling and retries.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check:
//
//	handler := errorhandler.New(errorhandler.WithRecorder(metrics.NoopRecorder{}))
//
// To enable metrics, swap in a PrometheusRecorder and serve HTTPHandler:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	mux.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
