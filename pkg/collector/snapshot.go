package collector

import (
	"time"
)

// Kind tells whether a sample behaves as a gauge or as a monotonic
// counter.
//
type Kind int

const (
	Gauge Kind = iota
	Counter
)

// Sample is a single normalized measurement.
//
// its identity is (Name, LabelNames, LabelValues) - unique within one
// snapshot; the `site` label is not part of it, being appended at
// exposition time by the Collector.
//
type Sample struct {
	Name        string
	Help        string
	Kind        Kind
	LabelNames  []string
	LabelValues []string
	Value       float64
}

// SiteStats is everything we know about a single tracker site at a point
// in time: its normalized samples plus the health of the read that
// produced (or failed to produce) them.
//
type SiteStats struct {
	// Name identifies the site; it becomes the `site` label value.
	//
	Name string

	// Samples are the normalized tracker measurements. On a failed
	// read these are carried over from the previous good read.
	//
	Samples []Sample

	// ClientPeers is the distribution of peers per client agent, nil
	// when the tracker did not report client information.
	//
	ClientPeers *Distribution

	// CapturedAt is when Samples were actually read off the tracker -
	// it does not advance on failed reads, making staleness
	// observable.
	//
	CapturedAt time.Time

	// Healthy is false when the last read attempt failed.
	//
	Healthy bool

	// Err holds the failure of the last read attempt, nil when
	// Healthy.
	//
	Err error

	// FetchDuration is how long the last read attempt took,
	// successful or not.
	//
	FetchDuration time.Duration

	// MissingFields counts schema fields that the tracker did not
	// report (or reported with anomalous values) in the last good
	// read.
	//
	MissingFields int
}

// Snapshot is one immutable, atomically published view over every
// configured site.
//
// once published it is never mutated - a newer snapshot supersedes it
// wholesale, so readers holding a reference can iterate it without any
// locking.
//
type Snapshot struct {
	Sites []SiteStats

	// RefreshedAt is when this snapshot was published; freshness is
	// measured against it.
	//
	RefreshedAt time.Time
}
