package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/arrivals/config"
	"tidbyt.dev/arrivals/feeds"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "arrivals.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, feeds.DefaultURL, cfg.FeedURL)
	assert.Equal(t, []string{"G35N"}, cfg.Stations)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "", cfg.Storage.Driver)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
feed_url = "https://example.com/feed"
stations = ["G35N", "G35S"]
timeout = "3s"
poll_interval = "15s"
listen = "0.0.0.0:9000"

[headers]
x-api-key = "secret"

[station_names]
G35N = "Flushing Av (to Court Sq)"

[storage]
driver = "sqlite"
dsn = "/var/lib/arrivals"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://example.com/feed", cfg.FeedURL)
	assert.Equal(t, []string{"G35N", "G35S"}, cfg.Stations)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, map[string]string{"x-api-key": "secret"}, cfg.Headers)
	assert.Equal(t, "Flushing Av (to Court Sq)", cfg.StationName("G35N"))
	assert.Equal(t, "G35S", cfg.StationName("G35S"))
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/arrivals", cfg.Storage.DSN)
}

func TestLoadRoute(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `route = "L"`))
	require.NoError(t, err)
	assert.Equal(t, feeds.BaseURL+"nyct%2Fgtfs-l", cfg.FeedURL)

	// Explicit feed wins
	cfg, err = config.Load(writeConfig(t, `
route = "L"
feed_url = "https://example.com/feed"
`))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/feed", cfg.FeedURL)

	_, err = config.Load(writeConfig(t, `route = "K"`))
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, `feed_url = `))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, `feed_ulr = "https://example.com"`))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARRIVALS_FEED_URL", "https://example.com/env")
	t.Setenv("ARRIVALS_STATION", "G35S, G36N")
	t.Setenv("ARRIVALS_LISTEN", "localhost:9999")
	t.Setenv("ARRIVALS_DB_DRIVER", "postgres")
	t.Setenv("ARRIVALS_DB_DSN", "postgres://localhost/arrivals")
	t.Setenv("ARRIVALS_TIMEOUT", "2s")

	cfg, err := config.Load(writeConfig(t, `feed_url = "https://example.com/file"`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://example.com/env", cfg.FeedURL)
	assert.Equal(t, []string{"G35S", "G36N"}, cfg.Stations)
	assert.Equal(t, "localhost:9999", cfg.Listen)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 2*time.Second, cfg.Timeout)

	t.Setenv("ARRIVALS_TIMEOUT", "soon")
	_, err = config.Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*config.Config){
		"bad feed url":      func(c *config.Config) { c.FeedURL = "not a url" },
		"no stations":       func(c *config.Config) { c.Stations = nil },
		"blank station":     func(c *config.Config) { c.Stations = []string{""} },
		"zero timeout":      func(c *config.Config) { c.Timeout = 0 },
		"zero interval":     func(c *config.Config) { c.PollInterval = 0 },
		"bad listen":        func(c *config.Config) { c.Listen = "nope" },
		"unknown driver":    func(c *config.Config) { c.Storage.Driver = "mongo" },
		"postgres sans dsn": func(c *config.Config) { c.Storage.Driver = "postgres" },
		"bad static url":    func(c *config.Config) { c.StaticURL = "zip" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseHeaders(t *testing.T) {
	headers, err := config.ParseHeaders([]string{"x-api-key: abc", "Accept:application/x-protobuf"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"x-api-key": "abc",
		"Accept":    "application/x-protobuf",
	}, headers)

	_, err = config.ParseHeaders([]string{"novalue"})
	assert.Error(t, err)

	_, err = config.ParseHeaders([]string{": value"})
	assert.Error(t, err)
}
