// Package metrics provides Prometheus instrumentation for admission and
// broadcast routing.
package metrics
