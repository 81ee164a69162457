// Package otel publishes engine counters as OpenTelemetry observable
// instruments named like the Prometheus series. Callers own the
// MeterProvider and pass in a Meter.
package otel
