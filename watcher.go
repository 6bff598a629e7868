package arrivals

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"tidbyt.dev/arrivals/storage"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultMaxParallel  = 8
)

// Polls a Board for a set of stations on a fixed interval.
//
// All stations are fetched concurrently on each tick, and the next
// tick doesn't start until they're all done. Failures are logged and
// passed to OnResult, but never stop the loop.
type Watcher struct {
	Board    *Board
	Stations []string
	Interval time.Duration

	// Optional. Successful results are recorded here.
	Log storage.ArrivalLog

	// Optional. Called once per station and tick, with either a
	// result or an error. May be called concurrently.
	OnResult func(stationID string, result *Result, err error)

	Logger  zerolog.Logger
	TimeNow func() time.Time
}

func NewWatcher(board *Board, stations []string) *Watcher {
	return &Watcher{
		Board:    board,
		Stations: stations,
		Interval: DefaultPollInterval,
		Logger:   zerolog.Nop(),
		TimeNow:  time.Now,
	}
}

// Polls immediately, and then on every tick until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		w.Poll(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Runs the pipeline once for every station.
func (w *Watcher) Poll(ctx context.Context) {
	now := time.Now
	if w.TimeNow != nil {
		now = w.TimeNow
	}
	polledAt := now().UTC()

	p := pool.New().WithMaxGoroutines(DefaultMaxParallel)
	for _, stationID := range w.Stations {
		stationID := stationID
		p.Go(func() {
			w.poll(ctx, stationID, polledAt)
		})
	}
	p.Wait()
}

func (w *Watcher) poll(ctx context.Context, stationID string, polledAt time.Time) {
	result, err := w.Board.Arrivals(ctx, stationID)
	if err != nil {
		w.Logger.Error().Err(err).Str("station", stationID).Msg("polling arrivals")
		if w.OnResult != nil {
			w.OnResult(stationID, nil, err)
		}
		return
	}

	w.Logger.Info().
		Str("station", stationID).
		Int("arrivals", len(result.Arrivals)).
		Msg("polled arrivals")

	if w.Log != nil {
		err = w.Log.WriteSnapshot(&storage.Snapshot{
			StationID:     stationID,
			FeedURL:       w.Board.FeedURL,
			PolledAt:      polledAt,
			FeedTimestamp: result.FeedTimestamp,
			Arrivals:      result.Arrivals,
		})
		if err != nil {
			w.Logger.Error().Err(err).Str("station", stationID).Msg("writing snapshot")
		}
	}

	if w.OnResult != nil {
		w.OnResult(stationID, result, nil)
	}
}
