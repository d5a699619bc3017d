package collector

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Collector implements the prometheus Collector interface, providing
// tracker metrics whenever a prometheus scrape is received.
//
// every scrape reads the same immutable snapshot reference off the cache,
// so any number of scrapes can be in flight without serializing on the
// tracker - a scrape only ever waits for the tracker when it is the one
// (or joins the one) refreshing an expired snapshot.
//
type Collector struct {
	cache *Cache

	log logr.Logger
}

// ensure that we implement prometheus' collector interface.
//
var _ prometheus.Collector = &Collector{}

// Option is a type used by functional arguments to mutate the collector
// to override default behavior.
//
type Option func(c *Collector)

// WithLogger overrides the default development logger.
//
func WithLogger(v logr.Logger) Option {
	return func(c *Collector) {
		c.log = v
	}
}

// Register registers a collector over `cache` with the given prometheus
// registry, making it available for an exporter to collect our metrics.
//
func Register(
	cache *Cache, registerer prometheus.Registerer, opts ...Option,
) error {
	defaultLogger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("zap new development: %w", err)
	}

	c := &Collector{
		cache: cache,
		log:   zapr.NewLogger(defaultLogger),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := registerer.Register(c); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	return nil
}

// Describe implements the Describe function of the Collector interface.
//
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	// Because we can present the description of the metrics at
	// collection time, we don't need to write anything to the channel.
}

// Collect implements the Collect function of the Collector interface.
//
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.cache.Current()

	for _, site := range snapshot.Sites {
		if !site.Healthy {
			c.log.V(1).Info("serving last known good data",
				"site", site.Name,
				"captured_at", site.CapturedAt,
			)
		}

		c.collectSite(ch, site)
	}
}

func (c *Collector) collectSite(ch chan<- prometheus.Metric, site SiteStats) {
	for _, sample := range site.Samples {
		ch <- sampleMetric(site.Name, sample)
	}

	if site.ClientPeers != nil {
		ch <- prometheus.MustNewConstSummary(
			prometheus.NewDesc(
				clientPeersMetricName,
				clientPeersMetricHelp,
				[]string{"site"}, nil,
			),
			site.ClientPeers.Count,
			site.ClientPeers.Sum,
			site.ClientPeers.Quantiles,
			site.Name,
		)
	}

	c.collectSiteHealth(ch, site)
}

// collectSiteHealth emits the exporter's own view of the site: whether
// the last read worked, how many ever failed, and how stale the data
// being served is.
//
// these are always emitted, even for a site that has never been read
// successfully, so that a monitoring system can alert on tracker health
// without ever seeing an HTTP-level scrape failure.
//
func (c *Collector) collectSiteHealth(
	ch chan<- prometheus.Metric, site SiteStats,
) {
	success := float64(0)
	if site.Healthy {
		success = 1
	}

	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc(
			namespace+"_last_fetch_success",
			"whether the last read of the tracker's stats succeeded",
			[]string{"site"}, nil,
		),
		prometheus.GaugeValue,
		success,
		site.Name,
	)

	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc(
			namespace+"_collector_errors_total",
			"number of failed reads of the tracker's stats",
			[]string{"site"}, nil,
		),
		prometheus.CounterValue,
		float64(c.cache.ErrorsTotal(site.Name)),
		site.Name,
	)

	capturedAt := float64(0)
	if !site.CapturedAt.IsZero() {
		capturedAt = float64(site.CapturedAt.Unix())
	}

	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc(
			namespace+"_last_fetch_timestamp_seconds",
			"unix timestamp of the last successful read of the tracker's stats",
			[]string{"site"}, nil,
		),
		prometheus.GaugeValue,
		capturedAt,
		site.Name,
	)

	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc(
			namespace+"_fetch_duration_seconds",
			"how long the last read of the tracker's stats took",
			[]string{"site"}, nil,
		),
		prometheus.GaugeValue,
		site.FetchDuration.Seconds(),
		site.Name,
	)

	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc(
			namespace+"_schema_missing_fields_total",
			"number of times a schema field was absent or anomalous in a good read",
			[]string{"site"}, nil,
		),
		prometheus.CounterValue,
		float64(c.cache.SchemaMissingTotal(site.Name)),
		site.Name,
	)
}

func sampleMetric(siteName string, sample Sample) prometheus.Metric {
	valueType := prometheus.GaugeValue
	if sample.Kind == Counter {
		valueType = prometheus.CounterValue
	}

	desc := prometheus.NewDesc(
		sample.Name,
		sample.Help,
		append([]string{"site"}, sample.LabelNames...),
		nil,
	)

	return prometheus.MustNewConstMetric(
		desc,
		valueType,
		sample.Value,
		append([]string{siteName}, sample.LabelValues...)...,
	)
}
