// Package server provides the HTTP monitoring API: health, statistics,
// configuration, the live transcript and Prometheus metrics.
package server
