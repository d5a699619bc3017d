package collector

import (
	"github.com/cirocosta/bttrack-exporter/pkg/tracker"
)

// normalize turns one raw tracker read into typed samples following the
// fixed schema.
//
// it is a pure function. Fields absent from the raw read are skipped
// rather than emitted as zero, but counted so the gap is observable;
// negative values make no sense for any field in this schema and are
// clamped to zero, counted the same way.
//
func normalize(raw *tracker.RawStats) (samples []Sample, clientPeers *Distribution, missing int) {
	samples = make([]Sample, 0, len(numericSchema)+2)

	for _, field := range numericSchema {
		value, found := raw.Values[field.raw]
		if !found {
			missing++
			continue
		}

		if value < 0 {
			value = 0
			missing++
		}

		samples = append(samples, Sample{
			Name:        field.name,
			Help:        field.help,
			Kind:        field.kind,
			LabelNames:  field.labelNames,
			LabelValues: field.labelValues,
			Value:       value,
		})
	}

	clientSamples, clientPeers, clientsMissing := normalizeClients(raw.Clients)
	samples = append(samples, clientSamples...)
	missing += clientsMissing

	return samples, clientPeers, missing
}

// normalizeClients derives the client-agent samples from the `clients`
// object: how many distinct agents, how many distinct agent versions, and
// the distribution of peers per agent.
//
func normalizeClients(clients map[string]map[string]float64) ([]Sample, *Distribution, int) {
	if clients == nil {
		// all three clients-derived families are gone: the agent
		// count, the version count and the peers-per-agent
		// distribution.
		return nil, nil, 3
	}

	versions := 0
	peersPerClient := NewSummary()

	for _, clientVersions := range clients {
		versions += len(clientVersions)

		peers := float64(0)
		for _, count := range clientVersions {
			peers += count
		}

		peersPerClient.Insert(peers)
	}

	samples := []Sample{
		{
			Name:  clientsMetricName,
			Help:  clientsMetricHelp,
			Kind:  Gauge,
			Value: float64(len(clients)),
		},
		{
			Name:  clientVersionsMetricName,
			Help:  clientVersionsMetricHelp,
			Kind:  Gauge,
			Value: float64(versions),
		},
	}

	return samples, peersPerClient.Distribution(), 0
}
