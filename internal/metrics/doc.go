// Package metrics defines all Prometheus collectors for the photo
// indexing service.
//
// Collectors are declared as package variables registered via promauto,
// grouped by subsystem: HTTP, job runner, file pipeline, derivative
// generation, geocoding and database. InitializeMetrics pre-populates
// known label combinations so gauges and counters appear on the first
// scrape rather than after first use.
package metrics
