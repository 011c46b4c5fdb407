// Package metrics provides the observability hooks for themebuilder tasks.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no caller needs nil checks. The dev server swaps in a
// PrometheusRecorder and exposes it over HTTP:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	mux.Handle("/__themebuilder/metrics", metrics.HTTPHandler(reg))
package metrics
