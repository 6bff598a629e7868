package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tidbyt.dev/arrivals/present"
	"tidbyt.dev/arrivals/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history <station_id>",
	Short: "Lists arrivals recorded by watch",
	Args:  cobra.ExactArgs(1),
	RunE:  history,
}

var (
	historyLimit int
	historySince time.Duration
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 10, "Number of snapshots to list")
	historyCmd.Flags().DurationVarP(&historySince, "since", "s", 0, "Only list snapshots this recent")
	rootCmd.AddCommand(historyCmd)
}

func history(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	log, err := openLog(cfg)
	if err != nil {
		return err
	}
	if log == nil {
		return fmt.Errorf("no storage configured, see --db-driver")
	}
	defer log.Close()

	filter := storage.SnapshotFilter{
		StationID: args[0],
		Limit:     historyLimit,
	}
	if historySince > 0 {
		filter.Since = time.Now().Add(-historySince)
	}

	snapshots, err := log.ListSnapshots(filter)
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}

	if len(snapshots) == 0 {
		fmt.Printf("Nothing recorded for %s\n", args[0])
		return nil
	}

	for _, snap := range snapshots {
		fmt.Printf("== %s %s ==\n", snap.PolledAt.In(time.Local).Format(time.DateTime), present.FeedAge(snap.FeedTimestamp, snap.PolledAt))
		if len(snap.Arrivals) == 0 {
			fmt.Println(present.NoArrivals)
			continue
		}
		for _, line := range present.Lines(snap.Arrivals, time.Local) {
			fmt.Println(line)
		}
	}

	return nil
}
