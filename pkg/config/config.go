// Package config deals with the exporter's configuration file.
//
// the file follows the same shape as the original bttrack collector
// configs:
//
//	sites:
//	- name: example
//	  url: https://tracker.example.com
//
// with optional overrides for the listen address, paths and timing knobs.
//
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Site points at one tracker whose statistics should be exported.
//
type Site struct {
	// Name is the value of the `site` label on every metric derived
	// from this tracker.
	//
	Name string `mapstructure:"name"`

	// URL is the base url of the tracker; `/stats.json` is appended
	// to it.
	//
	URL string `mapstructure:"url"`
}

// Config is the full set of file-configurable knobs.
//
type Config struct {
	Sites []Site `mapstructure:"sites"`

	BindAddr      string `mapstructure:"bind_addr"`
	TelemetryPath string `mapstructure:"telemetry_path"`

	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	BackoffMax   time.Duration `mapstructure:"backoff_max"`
}

// Load reads and validates the configuration file at `path`.
//
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("bind_addr", ":9113")
	v.SetDefault("telemetry_path", "/metrics")
	v.SetDefault("fetch_timeout", 5*time.Second)
	v.SetDefault("max_age", 15*time.Second)
	v.SetDefault("backoff_max", 2*time.Minute)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config '%s': %w", path, err)
	}

	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config '%s': %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config '%s': %w", path, err)
	}

	return cfg, nil
}

// Validate ensures the configuration describes something we can actually
// run: at least one site, each fully specified, no two under the same
// name.
//
func (c *Config) Validate() error {
	if len(c.Sites) == 0 {
		return fmt.Errorf("at least one site must be configured")
	}

	seen := map[string]bool{}

	for idx, site := range c.Sites {
		if site.Name == "" {
			return fmt.Errorf("site %d: name must not be empty", idx)
		}

		if site.URL == "" {
			return fmt.Errorf("site '%s': url must not be empty",
				site.Name)
		}

		if seen[site.Name] {
			return fmt.Errorf("duplicate site name '%s'", site.Name)
		}

		seen[site.Name] = true
	}

	return nil
}
