// Package internaldefs holds the metric names and histogram bounds shared by
// the prometheus and otel exporters.
package internaldefs
