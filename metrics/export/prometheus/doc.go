// Package prometheus renders engine counters in Prometheus text format.
//
// The exporter reads Engine.MetricsSnapshot and Engine.AuditDropped on every
// scrape. Counter names are gosecure_*_total and the only histogram is
// gosecure_authenticate_latency_seconds. Nothing is registered globally; mount
// Handler wherever the service exposes metrics.
package prometheus
