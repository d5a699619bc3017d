package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cirocosta/bttrack-exporter/pkg/collector"
	"github.com/cirocosta/bttrack-exporter/pkg/config"
	"github.com/cirocosta/bttrack-exporter/pkg/exporter"
	"github.com/cirocosta/bttrack-exporter/pkg/tracker"
)

type command struct {
	telemetryPath string
	bindAddr      string
	configPath    string
	trackerURL    string
	trackerName   string

	fetchTimeout time.Duration
	maxAge       time.Duration
	backoffMax   time.Duration
}

func (c *command) Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bttrack-exporter",
		Short: "Prometheus exporter for bittorrent tracker metrics",
		RunE:  c.RunE,
	}

	cmd.Flags().StringVar(&c.bindAddr, "bind-addr",
		":9113", "address to bind the prometheus server to")

	cmd.Flags().StringVar(&c.telemetryPath, "telemetry-path",
		"/metrics", "endpoint at which prometheus metrics are served")

	cmd.Flags().StringVar(&c.trackerURL, "tracker-url",
		"", "base url of the tracker to collect stats from - "+
			"ignored when --config is given")

	cmd.Flags().StringVar(&c.trackerName, "tracker-name",
		"default", "site label value used for --tracker-url metrics")

	cmd.Flags().StringVar(&c.configPath, "config",
		"", "yaml configuration file listing the tracker sites "+
			"to collect stats from")
	_ = cmd.MarkFlagFilename("config")

	cmd.Flags().DurationVar(&c.fetchTimeout, "fetch-timeout",
		5*time.Second, "hard bound on a single read of a "+
			"tracker's stats endpoint")

	cmd.Flags().DurationVar(&c.maxAge, "max-age",
		15*time.Second, "how long a fetched snapshot keeps being "+
			"served before scrapes trigger a new tracker read")

	cmd.Flags().DurationVar(&c.backoffMax, "backoff-max",
		2*time.Minute, "cap on the exponential backoff between "+
			"failed tracker reads")

	return cmd
}

// loadConfig builds the effective configuration: a file when given,
// otherwise a single site straight from the flags.
//
// sites always come from the file when there is one (--tracker-url is
// ignored then), while every other flag that was explicitly set wins
// over what the file says.
//
func (c *command) loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	if c.configPath == "" {
		if c.trackerURL == "" {
			return nil, fmt.Errorf(
				"either --config or --tracker-url must be given")
		}

		cfg := &config.Config{
			Sites: []config.Site{
				{Name: c.trackerName, URL: c.trackerURL},
			},
			BindAddr:      c.bindAddr,
			TelemetryPath: c.telemetryPath,
			FetchTimeout:  c.fetchTimeout,
			MaxAge:        c.maxAge,
			BackoffMax:    c.backoffMax,
		}

		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validate: %w", err)
		}

		return cfg, nil
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}

	if flags.Changed("bind-addr") {
		cfg.BindAddr = c.bindAddr
	}

	if flags.Changed("telemetry-path") {
		cfg.TelemetryPath = c.telemetryPath
	}

	if flags.Changed("fetch-timeout") {
		cfg.FetchTimeout = c.fetchTimeout
	}

	if flags.Changed("max-age") {
		cfg.MaxAge = c.maxAge
	}

	if flags.Changed("backoff-max") {
		cfg.BackoffMax = c.backoffMax
	}

	return cfg, nil
}

func (c *command) RunE(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	cfg, err := c.loadConfig(cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sources := make([]collector.Source, 0, len(cfg.Sites))

	for _, site := range cfg.Sites {
		client, err := tracker.NewClient(
			site.Name, site.URL,
			tracker.WithTimeout(cfg.FetchTimeout),
		)
		if err != nil {
			return fmt.Errorf("new client '%s': %w", site.URL, err)
		}

		sources = append(sources, client)
	}

	cache, err := collector.NewCache(sources,
		collector.WithMaxAge(cfg.MaxAge),
		collector.WithFetchTimeout(cfg.FetchTimeout),
		collector.WithBackoffMax(cfg.BackoffMax),
	)
	if err != nil {
		return fmt.Errorf("new cache: %w", err)
	}

	registry := prometheus.NewRegistry()

	if err := collector.Register(cache, registry); err != nil {
		return fmt.Errorf("collector register: %w", err)
	}

	prometheusExporter, err := exporter.New(
		exporter.WithBindAddress(cfg.BindAddr),
		exporter.WithTelemetryPath(cfg.TelemetryPath),
		exporter.WithGatherer(registry),
	)
	if err != nil {
		return fmt.Errorf("new exporter: %w", err)
	}
	defer prometheusExporter.Close()

	err = prometheusExporter.Run(ctx)
	if err != nil {
		// a signal-driven shutdown is a clean exit, not a failure.
		if errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("prometheus exporter run: %w", err)
	}

	return nil
}
