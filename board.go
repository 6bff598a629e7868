package arrivals

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tidbyt.dev/arrivals/downloader"
	"tidbyt.dev/arrivals/model"
	"tidbyt.dev/arrivals/parse"
)

const (
	DefaultTimeout = downloader.DefaultTimeout
	DefaultMaxSize = 16 << 20 // 16 MB
)

// Board runs the arrivals pipeline against a single GTFS Realtime
// feed: fetch, decode, extract and rank.
//
// A Board holds no state between calls. Every call to Arrivals
// fetches the feed anew (unless the Downloader caches), and failures
// are reported to the caller rather than retried.
type Board struct {
	FeedURL string
	Headers map[string]string
	Timeout time.Duration
	MaxSize int

	// When positive, and the Downloader supports it, feed bodies
	// are reused for this long. Zero means always fetch.
	CacheTTL time.Duration

	Downloader downloader.Downloader
	Logger     zerolog.Logger
}

// The outcome of a successful pipeline run. An empty Arrivals means
// the feed was fine, but had nothing for the station.
type Result struct {
	StationID     string
	FeedTimestamp *time.Time
	Arrivals      []model.Arrival
}

func NewBoard(feedURL string) *Board {
	return &Board{
		FeedURL:    feedURL,
		Timeout:    DefaultTimeout,
		MaxSize:    DefaultMaxSize,
		Downloader: downloader.NewMemory(),
		Logger:     zerolog.Nop(),
	}
}

// Fetches and decodes the feed.
//
// Fetch failures wrap downloader.ErrNetwork or a
// *downloader.StatusError. Decode failures wrap parse.ErrMalformed.
func (b *Board) Feed(ctx context.Context) (*parse.Feed, error) {
	d := b.Downloader
	if d == nil {
		d = downloader.HTTP{}
	}

	body, err := d.Get(ctx, b.FeedURL, b.Headers, downloader.GetOptions{
		Timeout:  b.Timeout,
		MaxSize:  b.MaxSize,
		Cache:    b.CacheTTL > 0,
		CacheTTL: b.CacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}

	feed, err := parse.ParseRealtime(body)
	if err != nil {
		return nil, fmt.Errorf("decoding feed: %w", err)
	}

	b.Logger.Debug().
		Str("url", b.FeedURL).
		Int("bytes", len(body)).
		Int("entities", len(feed.Entities)).
		Msg("fetched feed")

	return feed, nil
}

// Upcoming arrivals at a station, soonest first.
func (b *Board) Arrivals(ctx context.Context, stationID string) (*Result, error) {
	feed, err := b.Feed(ctx)
	if err != nil {
		return nil, err
	}

	return &Result{
		StationID:     stationID,
		FeedTimestamp: feed.Timestamp,
		Arrivals:      Rank(Extract(feed, stationID)),
	}, nil
}
