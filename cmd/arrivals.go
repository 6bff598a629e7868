package main

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tidbyt.dev/arrivals/downloader"
	"tidbyt.dev/arrivals/present"
)

var arrivalsCmd = &cobra.Command{
	Use:   "arrivals [station_id]",
	Short: "Lists upcoming arrivals at a station",
	Args:  cobra.MaximumNArgs(1),
	RunE:  listArrivals,
}

var limit int

func init() {
	arrivalsCmd.Flags().IntVarP(&limit, "limit", "l", -1, "Limit the number of arrivals listed")
	rootCmd.AddCommand(arrivalsCmd)
}

func listArrivals(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	stationID := cfg.Stations[0]

	board := newBoard(cfg, downloader.HTTP{})

	result, err := board.Arrivals(cmd.Context(), stationID)
	if err != nil {
		logger.Debug().Err(err).Str("station", stationID).Msg("loading arrivals")
		return errors.New(present.Failure(err))
	}

	if limit >= 0 && len(result.Arrivals) > limit {
		result.Arrivals = result.Arrivals[:limit]
	}

	return present.Text(os.Stdout, result, nil, time.Local)
}
