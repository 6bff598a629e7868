package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tidbyt.dev/arrivals"
	"tidbyt.dev/arrivals/config"
	"tidbyt.dev/arrivals/downloader"
	"tidbyt.dev/arrivals/storage"
)

var rootCmd = &cobra.Command{
	Use:               "arrivals",
	Short:             "Subway arrivals board",
	Long:              "Shows upcoming train arrivals at a station, from a GTFS Realtime feed",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var (
	configPath string
	feedURL    string
	route      string
	timeout    time.Duration
	headers    []string
	logLevel   string
	dbDriver   string
	dbDSN      string

	logger zerolog.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVarP(&feedURL, "feed-url", "", "", "GTFS Realtime URL")
	rootCmd.PersistentFlags().StringVarP(&route, "route", "r", "", "Pick the MTA feed carrying this route")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "", 0, "Feed request timeout")
	rootCmd.PersistentFlags().StringSliceVarP(
		&headers,
		"header",
		"",
		[]string{},
		"GTFS Realtime HTTP header, on form <key>:<value>",
	)
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&dbDriver, "db-driver", "", "", "Arrival history storage (memory, sqlite, postgres)")
	rootCmd.PersistentFlags().StringVarP(&dbDSN, "db-dsn", "", "", "Arrival history location (sqlite directory or postgres connection string)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
	return nil
}

// Loads the configuration file and environment, with flags on top.
// If stations are given, they replace the configured ones.
func loadConfig(cmd *cobra.Command, stations []string) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("route") {
		if err := cfg.SetRoute(route); err != nil {
			return config.Config{}, err
		}
	}
	if flags.Changed("feed-url") {
		cfg.FeedURL = feedURL
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("db-driver") {
		cfg.Storage.Driver = dbDriver
	}
	if flags.Changed("db-dsn") {
		cfg.Storage.DSN = dbDSN
	}

	parsed, err := config.ParseHeaders(headers)
	if err != nil {
		return config.Config{}, err
	}
	if len(parsed) > 0 && cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	for k, v := range parsed {
		cfg.Headers[k] = v
	}

	if len(stations) > 0 {
		cfg.Stations = stations
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	logger.Debug().
		Str("feed_url", cfg.FeedURL).
		Strs("stations", cfg.Stations).
		Msg("loaded configuration")

	return cfg, nil
}

func newBoard(cfg config.Config, d downloader.Downloader) *arrivals.Board {
	board := arrivals.NewBoard(cfg.FeedURL)
	board.Headers = cfg.Headers
	board.Timeout = cfg.Timeout
	board.Logger = logger
	if d != nil {
		board.Downloader = d
	}
	return board
}

// Opens the arrival history log, or returns nil if none is
// configured.
func openLog(cfg config.Config) (storage.ArrivalLog, error) {
	if cfg.Storage.Driver == "" {
		return nil, nil
	}
	log, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage.Driver, err)
	}
	return log, nil
}
