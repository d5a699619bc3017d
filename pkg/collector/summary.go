package collector

import "github.com/beorn7/perks/quantile"

// defaultQuantiles is the default quantiles to compute for a given data
// stream that we want to summarize, e.g. the peers-per-client-agent
// distribution.
//
var defaultQuantiles = map[float64]float64{
	0.05: 0.01,
	0.10: 0.01,
	0.25: 0.01,
	0.50: 0.01,
	0.75: 0.01,
	0.90: 0.01,
	0.95: 0.01,
	0.99: 0.01,
	1.00: 0.01,
}

// Distribution is the frozen result of summarizing a stream: once built,
// it is immutable and safe to share across concurrent scrape handlers
// (unlike the stream that produced it).
//
type Distribution struct {
	Count     uint64
	Sum       float64
	Quantiles map[float64]float64
}

// Summary accumulates observations and computes targeted quantiles over
// them.
//
type Summary struct {
	count     uint64
	sum       float64
	quantiles map[float64]float64

	stream *quantile.Stream
}

type SummaryOption func(s *Summary)

func WithQuantiles(v map[float64]float64) SummaryOption {
	return func(s *Summary) {
		s.quantiles = v
	}
}

func NewSummary(opts ...SummaryOption) *Summary {
	summary := &Summary{
		quantiles: cloneMap(defaultQuantiles),
	}

	for _, opt := range opts {
		opt(summary)
	}

	summary.stream = quantile.NewTargeted(summary.quantiles)

	return summary
}

func (s *Summary) Insert(v float64) {
	s.sum += v
	s.stream.Insert(v)
	s.count++
}

// Distribution computes the configured quantiles and freezes the result.
//
func (s *Summary) Distribution() *Distribution {
	quantiles := make(map[float64]float64, len(s.quantiles))
	for phi := range s.quantiles {
		quantiles[phi] = s.stream.Query(phi)
	}

	return &Distribution{
		Count:     s.count,
		Sum:       s.sum,
		Quantiles: quantiles,
	}
}

func cloneMap(o map[float64]float64) map[float64]float64 {
	m := make(map[float64]float64, len(o))
	for k, v := range o {
		m[k] = v
	}

	return m
}
