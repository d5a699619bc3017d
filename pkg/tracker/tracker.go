// Package tracker implements a thin client for the `stats.json` status
// endpoint that bittorrent-tracker style trackers expose.
//
// It is the only place that knows about the tracker's wire schema; everything
// downstream deals with RawStats.
//
package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable indicates that the tracker's status endpoint could not be
// reached at all (connection refused, DNS failure, timeout).
//
var ErrUnavailable = errors.New("tracker unavailable")

// ErrProtocol indicates that the tracker answered, but with something we
// could not make sense of (non-2xx status, malformed JSON).
//
var ErrProtocol = errors.New("tracker protocol error")

// RawStats is the unstructured result of a single read of a tracker's
// status endpoint.
//
// Values holds every top-level numeric field keyed by its raw name, so that
// consumers can check presence explicitly rather than rely on zero values.
// Clients maps client agent name to version to peer count.
//
type RawStats struct {
	Values     map[string]float64
	Clients    map[string]map[string]float64
	CapturedAt time.Time
}

// Has reports whether the tracker reported the given raw field.
//
func (r *RawStats) Has(field string) bool {
	_, found := r.Values[field]
	return found
}

// decodeStats parses a raw `stats.json` body.
//
// any top-level field that is not a number (other than `clients`) is
// ignored: the tracker's schema is an external contract that grows over
// time, and unknown fields must not break us.
//
func decodeStats(body []byte, capturedAt time.Time) (*RawStats, error) {
	var fields map[string]json.RawMessage

	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal body: %w: %w", ErrProtocol, err)
	}

	stats := &RawStats{
		Values:     map[string]float64{},
		CapturedAt: capturedAt,
	}

	for name, raw := range fields {
		if name == "clients" {
			var clients map[string]map[string]float64

			if err := json.Unmarshal(raw, &clients); err != nil {
				return nil, fmt.Errorf("unmarshal clients: %w: %w", ErrProtocol, err)
			}

			stats.Clients = clients

			continue
		}

		var value float64

		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}

		stats.Values[name] = value
	}

	return stats, nil
}
