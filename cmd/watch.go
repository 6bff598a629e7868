package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"tidbyt.dev/arrivals"
	"tidbyt.dev/arrivals/downloader"
	"tidbyt.dev/arrivals/present"
)

var watchCmd = &cobra.Command{
	Use:   "watch [station_id...]",
	Short: "Polls arrivals for stations until interrupted",
	Args:  cobra.ArbitraryArgs,
	RunE:  watch,
}

var interval time.Duration

func init() {
	watchCmd.Flags().DurationVarP(&interval, "interval", "i", 0, "Time between polls")
	rootCmd.AddCommand(watchCmd)
}

func watch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("interval") {
		if interval <= 0 {
			return fmt.Errorf("interval must be positive")
		}
		cfg.PollInterval = interval
	}

	log, err := openLog(cfg)
	if err != nil {
		return err
	}
	if log != nil {
		defer log.Close()
	}

	var mutex sync.Mutex
	w := arrivals.NewWatcher(newBoard(cfg, downloader.HTTP{}), cfg.Stations)
	w.Interval = cfg.PollInterval
	w.Log = log
	w.Logger = logger
	w.OnResult = func(stationID string, result *arrivals.Result, err error) {
		mutex.Lock()
		defer mutex.Unlock()

		fmt.Printf("== %s (%s) %s ==\n", cfg.StationName(stationID), stationID, time.Now().Format(present.TimeLayout))
		present.Text(os.Stdout, result, err, time.Local)
	}

	err = w.Run(cmd.Context())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
