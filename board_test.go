package arrivals_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/arrivals"
	"tidbyt.dev/arrivals/downloader"
	"tidbyt.dev/arrivals/parse"
	"tidbyt.dev/arrivals/testutil"
)

func TestBoardArrivals(t *testing.T) {
	server := testutil.NewFeedServer(t)
	server.Set("/gtfs-g", testutil.BuildTripFeed(t,
		testutil.TripUpdate{
			TripID:      "T1",
			RouteID:     "G",
			StopUpdates: []testutil.StopUpdate{{StopID: "G35N", Arrival: 200}},
		},
		testutil.TripUpdate{
			TripID:      "T2",
			RouteID:     "G",
			StopUpdates: []testutil.StopUpdate{{StopID: "G35N", Arrival: 100}},
		},
	))

	board := arrivals.NewBoard(server.URL("/gtfs-g"))
	result, err := board.Arrivals(context.Background(), "G35N")
	require.NoError(t, err)

	assert.Equal(t, "G35N", result.StationID)
	require.NotNil(t, result.FeedTimestamp)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), *result.FeedTimestamp)
	assert.Equal(t, []int64{100, 200}, eventTimes(result.Arrivals))
	assert.Equal(t, "T2", result.Arrivals[0].TripID)
}

func TestBoardNoMatch(t *testing.T) {
	server := testutil.NewFeedServer(t)
	server.Set("/feed", testutil.BuildTripFeed(t, testutil.TripUpdate{
		TripID:      "T1",
		RouteID:     "G",
		StopUpdates: []testutil.StopUpdate{{StopID: "G35S", Arrival: 100}},
	}))

	result, err := arrivals.NewBoard(server.URL("/feed")).Arrivals(context.Background(), "G35N")
	require.NoError(t, err)
	assert.Equal(t, 0, len(result.Arrivals))
}

func TestBoardStatusError(t *testing.T) {
	server := testutil.NewFeedServer(t)
	server.SetStatus("/feed", http.StatusServiceUnavailable)

	result, err := arrivals.NewBoard(server.URL("/feed")).Arrivals(context.Background(), "G35N")
	assert.Nil(t, result)
	require.Error(t, err)

	code, ok := downloader.StatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, 503, code)
	assert.False(t, errors.Is(err, parse.ErrMalformed))
}

func TestBoardNetworkError(t *testing.T) {
	server := testutil.NewFeedServer(t)
	url := server.URL("/feed")
	server.Server.Close()

	_, err := arrivals.NewBoard(url).Arrivals(context.Background(), "G35N")
	require.Error(t, err)
	assert.True(t, errors.Is(err, downloader.ErrNetwork))
}

func TestBoardMalformed(t *testing.T) {
	server := testutil.NewFeedServer(t)

	valid := testutil.BuildTripFeed(t, testutil.TripUpdate{
		TripID:      "T1",
		RouteID:     "G",
		StopUpdates: []testutil.StopUpdate{{StopID: "G35N", Arrival: 100}},
	})
	server.Set("/truncated", valid[:len(valid)-1])
	server.Set("/garbage", []byte("not a protobuf"))

	for _, path := range []string{"/truncated", "/garbage"} {
		result, err := arrivals.NewBoard(server.URL(path)).Arrivals(context.Background(), "G35N")
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, parse.ErrMalformed), path)
		assert.False(t, errors.Is(err, downloader.ErrNetwork), path)
	}
}

func TestBoardHeaders(t *testing.T) {
	feed := testutil.BuildFeed(t, nil)
	gotKey := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey <- r.Header.Get("x-api-key")
		w.Write(feed)
	}))
	defer server.Close()

	board := arrivals.NewBoard(server.URL)
	board.Headers = map[string]string{"x-api-key": "secret"}
	_, err := board.Arrivals(context.Background(), "G35N")
	require.NoError(t, err)
	assert.Equal(t, "secret", <-gotKey)
}

// Without a cache TTL, every call goes to the feed.
func TestBoardStateless(t *testing.T) {
	server := testutil.NewFeedServer(t)
	server.Set("/feed", testutil.BuildTripFeed(t, testutil.TripUpdate{
		TripID:      "T1",
		RouteID:     "G",
		StopUpdates: []testutil.StopUpdate{{StopID: "G35N", Arrival: 100}},
	}))

	board := arrivals.NewBoard(server.URL("/feed"))

	_, err := board.Arrivals(context.Background(), "G35N")
	require.NoError(t, err)

	// Feed goes down. Previous result is not served.
	server.SetStatus("/feed", http.StatusInternalServerError)
	_, err = board.Arrivals(context.Background(), "G35N")
	require.Error(t, err)

	assert.Equal(t, 2, len(server.Requests()))
}

func TestBoardCacheTTL(t *testing.T) {
	server := testutil.NewFeedServer(t)
	server.Set("/feed", testutil.BuildFeed(t, nil))

	board := arrivals.NewBoard(server.URL("/feed"))
	board.CacheTTL = time.Minute

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := board.Arrivals(context.Background(), "G35N")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, len(server.Requests()))
}

func TestBoardContextCancelled(t *testing.T) {
	server := testutil.NewFeedServer(t)
	server.Set("/feed", testutil.BuildFeed(t, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := arrivals.NewBoard(server.URL("/feed")).Arrivals(ctx, "G35N")
	require.Error(t, err)
	assert.True(t, errors.Is(err, downloader.ErrNetwork))
}
