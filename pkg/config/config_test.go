package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bttrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	t.Run("minimal config gets defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
sites:
- name: example
  url: https://tracker.example.com
`))
		require.NoError(t, err)

		require.Len(t, cfg.Sites, 1)
		assert.Equal(t, "example", cfg.Sites[0].Name)
		assert.Equal(t, "https://tracker.example.com", cfg.Sites[0].URL)

		assert.Equal(t, ":9113", cfg.BindAddr)
		assert.Equal(t, "/metrics", cfg.TelemetryPath)
		assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
		assert.Equal(t, 15*time.Second, cfg.MaxAge)
		assert.Equal(t, 2*time.Minute, cfg.BackoffMax)
	})

	t.Run("overrides win over defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
sites:
- name: a
  url: https://a.example.com
- name: b
  url: https://b.example.com
bind_addr: 127.0.0.1:9999
fetch_timeout: 2s
max_age: 1m
`))
		require.NoError(t, err)

		assert.Len(t, cfg.Sites, 2)
		assert.Equal(t, "127.0.0.1:9999", cfg.BindAddr)
		assert.Equal(t, 2*time.Second, cfg.FetchTimeout)
		assert.Equal(t, time.Minute, cfg.MaxAge)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

		assert.Error(t, err)
	})

	t.Run("no sites", func(t *testing.T) {
		_, err := Load(writeConfig(t, `bind_addr: ":9113"`))

		assert.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	for _, tc := range []struct {
		name  string
		cfg   Config
		valid bool
	}{
		{
			name: "ok",
			cfg: Config{Sites: []Site{
				{Name: "a", URL: "https://a.example.com"},
			}},
			valid: true,
		},
		{
			name:  "no sites",
			cfg:   Config{},
			valid: false,
		},
		{
			name: "unnamed site",
			cfg: Config{Sites: []Site{
				{URL: "https://a.example.com"},
			}},
			valid: false,
		},
		{
			name: "site without url",
			cfg: Config{Sites: []Site{
				{Name: "a"},
			}},
			valid: false,
		},
		{
			name: "duplicate names",
			cfg: Config{Sites: []Site{
				{Name: "a", URL: "https://a.example.com"},
				{Name: "a", URL: "https://b.example.com"},
			}},
			valid: false,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()

			if tc.valid {
				assert.NoError(t, err)
				return
			}

			assert.Error(t, err)
		})
	}
}
