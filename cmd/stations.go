package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tidbyt.dev/arrivals"
	"tidbyt.dev/arrivals/config"
	"tidbyt.dev/arrivals/downloader"
	"tidbyt.dev/arrivals/parse"
)

var stationsCmd = &cobra.Command{
	Use:   "stations <gtfs.zip|url>",
	Short: "Lists stops in a static GTFS feed",
	Args:  cobra.ExactArgs(1),
	RunE:  listStations,
}

var prefix string

func init() {
	stationsCmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Only list stops with IDs starting with this")
	rootCmd.AddCommand(stationsCmd)
}

func listStations(cmd *cobra.Command, args []string) error {
	source := args[0]

	var stations *arrivals.Stations
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		parsed, err := config.ParseHeaders(headers)
		if err != nil {
			return err
		}
		stations, err = arrivals.LoadStations(cmd.Context(), downloader.HTTP{}, source, parsed)
		if err != nil {
			return err
		}
	} else {
		buf, err := os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("reading %s: %w", source, err)
		}
		stops, err := parse.ParseStaticStops(buf)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", source, err)
		}
		stations = arrivals.NewStations(stops)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, stop := range stations.Stops(prefix) {
		fmt.Fprintf(w, "%s\t%s\t%s\n", stop.ID, stations.Name(stop.ID), stop.ParentStation)
	}
	return w.Flush()
}
