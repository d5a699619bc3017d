// Package collector provides the core functionality of this exporter.
//
// It implements the Prometheus collector interface on top of a snapshot
// cache: tracker statistics are fetched lazily when a scrape finds the
// cached snapshot past its freshness window, normalized into a fixed metric
// schema, and published atomically so that any number of concurrent scrapes
// observe a consistent view, even while the tracker itself is slow, stale
// or down.
//
package collector
