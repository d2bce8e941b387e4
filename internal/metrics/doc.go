// Package metrics provides Prometheus metrics for the transcription pipeline.
package metrics
