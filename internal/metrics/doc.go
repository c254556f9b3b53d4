// Package metrics observes builds without influencing them.
//
// Recorder is the push-style hook (Prometheus or no-op). Monitor keeps the
// per-stage timing records and the background resource samples of one build
// and reduces them to a Summary that is persisted as a JSON report.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder:
//
//	recorder := metrics.NewPrometheusRecorder(prom.NewRegistry())
//	svc := build.NewService(cfg, build.WithRecorder(recorder))
//
// Sampling failures are logged and never surface to callers.
package metrics
