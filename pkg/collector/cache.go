package collector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/cirocosta/bttrack-exporter/pkg/tracker"
)

// Source reads raw statistics from a single tracker site.
//
// `pkg/tracker.Client` is the production implementation; tests inject
// fakes.
//
type Source interface {
	Name() string
	Stats(ctx context.Context) (*tracker.RawStats, error)
}

const (
	defaultMaxAge       = 15 * time.Second
	defaultFetchTimeout = 5 * time.Second
	defaultBackoffMax   = 2 * time.Minute

	initialBackoff = 1 * time.Second
)

// Cache holds the most recently published Snapshot and decides when a new
// one must be produced.
//
// refresh policy: lazy-on-read with a grace window - a snapshot younger
// than maxAge is served as-is with no I/O, so back-to-back scrapes share
// one tracker read. Past the window, the next reader triggers a refresh
// and every concurrent reader joins that single in-flight attempt rather
// than piling reads onto the tracker.
//
// on a failed refresh the previous good samples of the failing site are
// retained (last known good) and further attempts are gated by a capped
// exponential backoff.
//
type Cache struct {
	sources []Source

	maxAge       time.Duration
	fetchTimeout time.Duration
	backoffMax   time.Duration

	log logr.Logger

	snapshot atomic.Pointer[Snapshot]
	flight   singleflight.Group

	// errors counts failed reads per site, and schemaMissing the
	// fields found absent or anomalous across good reads, both for
	// the lifetime of the process - they must survive snapshot
	// turnover to keep counter semantics.
	//
	errors        map[string]*atomic.Uint64
	schemaMissing map[string]*atomic.Uint64

	// mu guards the backoff state below.
	//
	mu          sync.Mutex
	backoff     time.Duration
	nextAttempt time.Time
}

// CacheOption is a type used by functional arguments to mutate the cache
// to override default behavior.
//
type CacheOption func(c *Cache)

// WithMaxAge overrides the freshness window within which a snapshot is
// served without touching the tracker.
//
func WithMaxAge(v time.Duration) CacheOption {
	return func(c *Cache) {
		c.maxAge = v
	}
}

// WithFetchTimeout overrides the hard bound on a whole refresh (all sites
// included).
//
func WithFetchTimeout(v time.Duration) CacheOption {
	return func(c *Cache) {
		c.fetchTimeout = v
	}
}

// WithBackoffMax overrides the cap on the exponential backoff applied
// between failed refresh attempts.
//
func WithBackoffMax(v time.Duration) CacheOption {
	return func(c *Cache) {
		c.backoffMax = v
	}
}

// WithCacheLogger overrides the default development logger.
//
func WithCacheLogger(v logr.Logger) CacheOption {
	return func(c *Cache) {
		c.log = v
	}
}

// NewCache instantiates a cache over the given sources.
//
func NewCache(sources []Source, opts ...CacheOption) (*Cache, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one source must be configured")
	}

	defaultLogger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("zap new development: %w", err)
	}

	c := &Cache{
		sources:       sources,
		maxAge:        defaultMaxAge,
		fetchTimeout:  defaultFetchTimeout,
		backoffMax:    defaultBackoffMax,
		log:           zapr.NewLogger(defaultLogger.Named("cache")),
		errors:        map[string]*atomic.Uint64{},
		schemaMissing: map[string]*atomic.Uint64{},
	}

	for _, source := range sources {
		if _, found := c.errors[source.Name()]; found {
			return nil, fmt.Errorf(
				"duplicate source name '%s'", source.Name())
		}

		c.errors[source.Name()] = &atomic.Uint64{}
		c.schemaMissing[source.Name()] = &atomic.Uint64{}
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Current gives back the snapshot that scrapes should be served from.
//
// it refreshes first when no snapshot was ever published (cold start: the
// very first scrape blocks for one bounded fetch instead of serving an
// empty body) or when the published one is past its freshness window and
// the backoff gate allows another attempt. In every other case it is a
// single atomic load.
//
func (c *Cache) Current() *Snapshot {
	snapshot := c.snapshot.Load()
	if snapshot != nil {
		if time.Since(snapshot.RefreshedAt) < c.maxAge {
			return snapshot
		}

		if !c.attemptDue() {
			return snapshot
		}
	}

	// concurrent triggers collapse into this one in-flight refresh;
	// joiners all receive the snapshot it publishes.
	//
	v, _, _ := c.flight.Do("refresh", func() (interface{}, error) {
		return c.refresh(), nil
	})

	return v.(*Snapshot)
}

// ErrorsTotal gives back the number of failed reads of the given site
// since the process started.
//
func (c *Cache) ErrorsTotal(site string) uint64 {
	counter, found := c.errors[site]
	if !found {
		return 0
	}

	return counter.Load()
}

// SchemaMissingTotal gives back how many times a schema field was found
// absent or anomalous across all good reads of the given site since the
// process started.
//
func (c *Cache) SchemaMissingTotal(site string) uint64 {
	counter, found := c.schemaMissing[site]
	if !found {
		return 0
	}

	return counter.Load()
}

// refresh reads every site concurrently, then publishes a new snapshot.
//
// it never fails as a whole: sites that could not be read keep their
// previous good samples and get flagged unhealthy.
//
func (c *Cache) refresh() *Snapshot {
	ctx, cancel := context.WithTimeout(
		context.Background(), c.fetchTimeout,
	)
	defer cancel()

	previous := c.snapshot.Load()
	sites := make([]SiteStats, len(c.sources))

	var g errgroup.Group

	for idx, source := range c.sources {
		idx, source := idx, source

		g.Go(func() error {
			sites[idx] = c.readSite(ctx, source, previous)
			return nil
		})
	}

	// readSite never returns an error - failures are recorded in the
	// site's entry.
	_ = g.Wait()

	failed := false
	for _, site := range sites {
		if !site.Healthy {
			failed = true
		}
	}

	c.applyBackoff(failed)

	snapshot := &Snapshot{
		Sites:       sites,
		RefreshedAt: time.Now(),
	}

	c.snapshot.Store(snapshot)

	return snapshot
}

func (c *Cache) readSite(
	ctx context.Context, source Source, previous *Snapshot,
) SiteStats {
	begin := time.Now()

	raw, err := source.Stats(ctx)
	if err != nil {
		c.errors[source.Name()].Add(1)
		c.log.Error(err, "stats", "site", source.Name())

		stats := previousSiteStats(previous, source.Name())
		stats.Name = source.Name()
		stats.Healthy = false
		stats.Err = err
		stats.FetchDuration = time.Since(begin)

		return stats
	}

	samples, clientPeers, missing := normalize(raw)

	c.schemaMissing[source.Name()].Add(uint64(missing))

	return SiteStats{
		Name:          source.Name(),
		Samples:       samples,
		ClientPeers:   clientPeers,
		CapturedAt:    raw.CapturedAt,
		Healthy:       true,
		FetchDuration: time.Since(begin),
		MissingFields: missing,
	}
}

// previousSiteStats recovers the last known good state of a site so that
// a failed read does not wipe what we knew.
//
func previousSiteStats(previous *Snapshot, name string) SiteStats {
	if previous == nil {
		return SiteStats{}
	}

	for _, site := range previous.Sites {
		if site.Name == name {
			return site
		}
	}

	return SiteStats{}
}

func (c *Cache) attemptDue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return !time.Now().Before(c.nextAttempt)
}

func (c *Cache) applyBackoff(failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !failed {
		c.backoff = 0
		c.nextAttempt = time.Time{}

		return
	}

	switch {
	case c.backoff == 0:
		c.backoff = initialBackoff
	default:
		c.backoff *= 2
	}

	if c.backoff > c.backoffMax {
		c.backoff = c.backoffMax
	}

	c.nextAttempt = time.Now().Add(c.backoff)
}
