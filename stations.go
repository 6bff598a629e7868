package arrivals

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"tidbyt.dev/arrivals/downloader"
	"tidbyt.dev/arrivals/model"
	"tidbyt.dev/arrivals/parse"
)

const (
	DefaultStaticTimeout = 60 * time.Second
	DefaultStaticMaxSize = 200 << 20 // 200 MB
)

// Station directory built from a static GTFS feed's stops.txt. Only
// used to put names on stop IDs, never to filter arrivals.
type Stations struct {
	stops []model.Stop
	names map[string]string
}

func NewStations(stops []model.Stop) *Stations {
	sorted := make([]model.Stop, len(stops))
	copy(sorted, stops)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	return &Stations{
		stops: sorted,
		names: parse.StopNames(stops),
	}
}

// Downloads a static GTFS zip and reads its stops.
func LoadStations(
	ctx context.Context,
	d downloader.Downloader,
	staticURL string,
	headers map[string]string,
) (*Stations, error) {
	if d == nil {
		d = downloader.HTTP{}
	}

	body, err := d.Get(ctx, staticURL, headers, downloader.GetOptions{
		Timeout: DefaultStaticTimeout,
		MaxSize: DefaultStaticMaxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("downloading static feed: %w", err)
	}

	stops, err := parse.ParseStaticStops(body)
	if err != nil {
		return nil, fmt.Errorf("parsing static feed: %w", err)
	}

	return NewStations(stops), nil
}

// Name of the stop, or the stop ID itself if it's unknown.
func (s *Stations) Name(stopID string) string {
	if s != nil {
		if name, ok := s.names[stopID]; ok {
			return name
		}
	}
	return stopID
}

// Stops ordered by ID. If prefix is non-empty, only stops with IDs
// starting with it are returned.
func (s *Stations) Stops(prefix string) []model.Stop {
	result := []model.Stop{}
	if s == nil {
		return result
	}
	for _, stop := range s.stops {
		if strings.HasPrefix(stop.ID, prefix) {
			result = append(result, stop)
		}
	}
	return result
}
