package testutil

// Helpers for building GTFS Realtime feeds and static GTFS zips in
// tests.

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/require"
	proto "google.golang.org/protobuf/proto"
)

// A stop_time_update. Zero Arrival/Departure means the event is left
// out of the feed.
type StopUpdate struct {
	StopID    string
	Arrival   int64
	Departure int64

	// Includes an event carrying only a delay, i.e. with the time
	// field unset.
	ArrivalDelayOnly   bool
	DepartureDelayOnly bool
}

type TripUpdate struct {
	TripID      string
	RouteID     string
	StopUpdates []StopUpdate
}

// Feed entities. A nil TripUpdate produces a vehicle position entity.
type Entity struct {
	ID         string
	TripUpdate *TripUpdate
}

func BuildFeedMessage(entities []Entity) *gtfsproto.FeedMessage {
	entity := make([]*gtfsproto.FeedEntity, 0, len(entities))

	for _, e := range entities {
		fe := &gtfsproto.FeedEntity{Id: proto.String(e.ID)}

		if e.TripUpdate == nil {
			fe.Vehicle = &gtfsproto.VehiclePosition{
				Trip: &gtfsproto.TripDescriptor{TripId: proto.String(e.ID)},
			}
			entity = append(entity, fe)
			continue
		}

		stus := make([]*gtfsproto.TripUpdate_StopTimeUpdate, 0, len(e.TripUpdate.StopUpdates))
		for _, su := range e.TripUpdate.StopUpdates {
			stu := &gtfsproto.TripUpdate_StopTimeUpdate{
				StopId: proto.String(su.StopID),
			}
			if su.Arrival != 0 {
				stu.Arrival = &gtfsproto.TripUpdate_StopTimeEvent{Time: proto.Int64(su.Arrival)}
			} else if su.ArrivalDelayOnly {
				stu.Arrival = &gtfsproto.TripUpdate_StopTimeEvent{Delay: proto.Int32(30)}
			}
			if su.Departure != 0 {
				stu.Departure = &gtfsproto.TripUpdate_StopTimeEvent{Time: proto.Int64(su.Departure)}
			} else if su.DepartureDelayOnly {
				stu.Departure = &gtfsproto.TripUpdate_StopTimeEvent{Delay: proto.Int32(30)}
			}
			stus = append(stus, stu)
		}

		fe.TripUpdate = &gtfsproto.TripUpdate{
			Trip: &gtfsproto.TripDescriptor{
				TripId:  proto.String(e.TripUpdate.TripID),
				RouteId: proto.String(e.TripUpdate.RouteID),
			},
			StopTimeUpdate: stus,
		}
		entity = append(entity, fe)
	}

	return &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("1.0"),
			Incrementality:      gtfsproto.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(1700000000),
		},
		Entity: entity,
	}
}

// Marshals a feed holding the given entities.
func BuildFeed(t testing.TB, entities []Entity) []byte {
	data, err := proto.Marshal(BuildFeedMessage(entities))
	require.NoError(t, err)
	return data
}

// Convenience for the common case of one entity per trip update.
func BuildTripFeed(t testing.TB, tripUpdates ...TripUpdate) []byte {
	entities := make([]Entity, 0, len(tripUpdates))
	for i := range tripUpdates {
		entities = append(entities, Entity{
			ID:         tripUpdates[i].TripID,
			TripUpdate: &tripUpdates[i],
		})
	}
	return BuildFeed(t, entities)
}

func BuildZip(
	t testing.TB,
	files map[string][]string,
) []byte {

	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for filename, content := range files {
		f, err := w.Create(filename)
		require.NoError(t, err)
		_, err = f.Write([]byte(strings.Join(content, "\n")))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return buf.Bytes()
}

// Serves canned responses by path. Paths without a body get a 404,
// paths listed in Status get that status code.
type FeedServer struct {
	Server *httptest.Server

	mutex    sync.Mutex
	bodies   map[string][]byte
	status   map[string]int
	requests []string
}

func NewFeedServer(t testing.TB) *FeedServer {
	fs := &FeedServer{
		bodies: map[string][]byte{},
		status: map[string]int{},
	}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.handler))
	t.Cleanup(fs.Server.Close)
	return fs
}

func (fs *FeedServer) Set(path string, body []byte) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	fs.bodies[path] = body
	delete(fs.status, path)
}

func (fs *FeedServer) SetStatus(path string, status int) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	fs.status[path] = status
}

func (fs *FeedServer) URL(path string) string {
	return fs.Server.URL + path
}

func (fs *FeedServer) Requests() []string {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	return append([]string{}, fs.requests...)
}

func (fs *FeedServer) handler(w http.ResponseWriter, r *http.Request) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	fs.requests = append(fs.requests, r.URL.Path)

	if status, found := fs.status[r.URL.Path]; found {
		w.WriteHeader(status)
		return
	}
	if body, found := fs.bodies[r.URL.Path]; found {
		w.Write(body)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}
