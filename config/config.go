package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"tidbyt.dev/arrivals"
	"tidbyt.dev/arrivals/feeds"
)

// Settings are layered: defaults, then the TOML file, then
// environment. Command line flags are applied on top by the caller,
// which then calls Validate.

type Storage struct {
	// Blank means snapshots aren't recorded.
	Driver string `toml:"driver" validate:"omitempty,oneof=memory sqlite postgres"`
	DSN    string `toml:"dsn" validate:"required_if=Driver postgres"`
}

type Config struct {
	FeedURL string            `toml:"feed_url" validate:"required,url"`
	Route   string            `toml:"route"`
	Headers map[string]string `toml:"headers"`

	Stations     []string          `toml:"stations" validate:"required,min=1,dive,required"`
	StationNames map[string]string `toml:"station_names"`

	// Static GTFS zip used to name stations.
	StaticURL string `toml:"static_url" validate:"omitempty,url"`

	Timeout      time.Duration `toml:"timeout" validate:"gt=0"`
	PollInterval time.Duration `toml:"poll_interval" validate:"gt=0"`
	CacheTTL     time.Duration `toml:"cache_ttl" validate:"gte=0"`

	Listen  string  `toml:"listen" validate:"required,hostname_port"`
	Storage Storage `toml:"storage"`
}

func Default() Config {
	return Config{
		FeedURL:      feeds.DefaultURL,
		Stations:     []string{feeds.DefaultStation},
		Timeout:      arrivals.DefaultTimeout,
		PollInterval: arrivals.DefaultPollInterval,
		CacheTTL:     5 * time.Second,
		Listen:       "localhost:8080",
	}
}

// Loads configuration from the TOML file at path, if path is
// non-empty, and from the environment. The result is not validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decoding %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
		}

		// A route picks the feed, unless the feed was given
		// explicitly.
		if cfg.Route != "" && !md.IsDefined("feed_url") {
			if err := cfg.SetRoute(cfg.Route); err != nil {
				return Config{}, err
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Points FeedURL at the MTA feed carrying the route.
func (c *Config) SetRoute(route string) error {
	url, ok := feeds.URLForRoute(route)
	if !ok {
		return fmt.Errorf("no feed known for route %q", route)
	}
	c.Route = route
	c.FeedURL = url
	return nil
}

func (c *Config) applyEnv() error {
	c.FeedURL = getEnv("ARRIVALS_FEED_URL", c.FeedURL)
	c.Listen = getEnv("ARRIVALS_LISTEN", c.Listen)
	c.Storage.Driver = getEnv("ARRIVALS_DB_DRIVER", c.Storage.Driver)
	c.Storage.DSN = getEnv("ARRIVALS_DB_DSN", c.Storage.DSN)

	if stations := getEnv("ARRIVALS_STATION", ""); stations != "" {
		c.Stations = splitList(stations)
	}

	if timeout := getEnv("ARRIVALS_TIMEOUT", ""); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("parsing ARRIVALS_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}

	return nil
}

func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Display name for a station, falling back to the ID.
func (c Config) StationName(stationID string) string {
	if name, ok := c.StationNames[stationID]; ok {
		return name
	}
	return stationID
}

// Parses "Name: value" pairs as given to --header.
func ParseHeaders(raw []string) (map[string]string, error) {
	headers := map[string]string{}
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Name: value\"", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	result := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
