// Package observability turns engine lifecycle hooks into Prometheus metrics
// and debug logs, and serves the metrics over HTTP.
package observability
