package collector

// namespace prefixes every metric this exporter emits.
//
const namespace = "bttrack"

// numericField maps one raw `stats.json` key to its normalized metric
// identity.
//
// the identity side (name, label keys) is a stable contract: it never
// changes shape across releases regardless of the values the tracker
// reports.
//
type numericField struct {
	raw  string
	name string
	help string
	kind Kind

	labelNames  []string
	labelValues []string
}

// numericSchema is the fixed set of numeric fields we understand,
// matching what bittorrent-tracker style trackers report.
//
var numericSchema = []numericField{
	{
		raw:  "torrents",
		name: namespace + "_torrents",
		help: "number of torrents seen by the tracker",
		kind: Gauge,
	},
	{
		raw:  "activeTorrents",
		name: namespace + "_torrents_active",
		help: "number of torrents currently active",
		kind: Gauge,
	},
	{
		raw:         "peersAll",
		name:        namespace + "_peers",
		help:        "number of peers reported by the tracker",
		kind:        Gauge,
		labelNames:  []string{"state"},
		labelValues: []string{"all"},
	},
	{
		raw:         "peersSeederOnly",
		name:        namespace + "_peers",
		help:        "number of peers reported by the tracker",
		kind:        Gauge,
		labelNames:  []string{"state"},
		labelValues: []string{"seeder_only"},
	},
	{
		raw:         "peersLeecherOnly",
		name:        namespace + "_peers",
		help:        "number of peers reported by the tracker",
		kind:        Gauge,
		labelNames:  []string{"state"},
		labelValues: []string{"leecher_only"},
	},
	{
		raw:         "peersSeederAndLeecher",
		name:        namespace + "_peers",
		help:        "number of peers reported by the tracker",
		kind:        Gauge,
		labelNames:  []string{"state"},
		labelValues: []string{"seeder_and_leecher"},
	},
	{
		raw:         "peersIPv4",
		name:        namespace + "_peers_by_family",
		help:        "number of peers reported by the tracker, by address family",
		kind:        Gauge,
		labelNames:  []string{"family"},
		labelValues: []string{"ipv4"},
	},
	{
		raw:         "peersIPv6",
		name:        namespace + "_peers_by_family",
		help:        "number of peers reported by the tracker, by address family",
		kind:        Gauge,
		labelNames:  []string{"family"},
		labelValues: []string{"ipv6"},
	},
}

// metric names derived from the `clients` object rather than a plain
// numeric field.
//
const (
	clientsMetricName        = namespace + "_clients"
	clientsMetricHelp        = "number of unique client agents"
	clientVersionsMetricName = namespace + "_client_versions"
	clientVersionsMetricHelp = "number of unique client agent versions"
	clientPeersMetricName    = namespace + "_client_peers"
	clientPeersMetricHelp    = "distribution of peers per client agent"
)
