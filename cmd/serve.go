package main

import (
	"context"
	"errors"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"tidbyt.dev/arrivals"
	"tidbyt.dev/arrivals/downloader"
	"tidbyt.dev/arrivals/telemetry"
	"tidbyt.dev/arrivals/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the arrivals board over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var (
	listen      string
	corsOrigins []string
)

func init() {
	serveCmd.Flags().StringVarP(&listen, "listen", "L", "", "Address to listen on")
	serveCmd.Flags().StringSliceVarP(&corsOrigins, "cors-origin", "", []string{}, "Origin allowed to call the JSON API")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen = listen
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	metrics := telemetry.NewMetrics()

	board := newBoard(cfg, telemetry.Instrument(downloader.NewMemory(), metrics))
	board.CacheTTL = cfg.CacheTTL

	server, err := web.NewServer(board, cfg.Stations[0])
	if err != nil {
		return err
	}
	server.StationNames = cfg.StationNames
	server.Metrics = metrics
	server.CORSOrigins = corsOrigins
	server.Logger = logger

	if cfg.StaticURL != "" {
		stations, err := arrivals.LoadStations(ctx, downloader.HTTP{}, cfg.StaticURL, cfg.Headers)
		if err != nil {
			// Names are cosmetic. Fall back to stop IDs.
			logger.Warn().Err(err).Str("url", cfg.StaticURL).Msg("loading station names")
		} else {
			server.Stations = stations
		}
	}

	log, err := openLog(cfg)
	if err != nil {
		return err
	}
	if log != nil {
		defer log.Close()
		server.Log = log
	}

	var wg conc.WaitGroup

	// With storage configured, the configured stations are polled
	// in the background to build up history.
	if log != nil {
		w := arrivals.NewWatcher(board, cfg.Stations)
		w.Interval = cfg.PollInterval
		w.Log = log
		w.Logger = logger
		w.OnResult = func(stationID string, result *arrivals.Result, err error) {
			matches := 0
			if result != nil {
				matches = len(result.Arrivals)
			}
			metrics.ObserveArrivals(board.FeedURL, stationID, matches, err)
		}
		wg.Go(func() {
			err := w.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("watcher stopped")
			}
		})
	}

	err = server.Serve(ctx, cfg.Listen)
	cancel()
	wg.Wait()

	return err
}

