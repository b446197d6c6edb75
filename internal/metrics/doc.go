// Package metrics provides observability hooks for staticpress builds.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never requires nil checks at call
// sites. When a Prometheus registry is configured (daemon mode), the same
// call sites feed PrometheusRecorder instead:
//
//	recorder := metrics.NewPrometheusRecorder(registry)
//	pipeline := build.New(cfg).WithRecorder(recorder)
//
// The daemon serves the registry via HTTPHandler on its metrics address.
package metrics
