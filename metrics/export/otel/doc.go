// Package otel publishes engine counters through an OpenTelemetry Meter.
//
// NewExporter registers one observable counter per engine counter and one
// observable gauge per histogram bucket. A single callback reads the engine
// snapshot on every collection. The caller owns the MeterProvider.
package otel
