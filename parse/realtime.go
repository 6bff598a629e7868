package parse

import (
	"errors"
	"fmt"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"
)

// Returned (wrapped) when a payload isn't a well-formed GTFS Realtime
// FeedMessage. Test with errors.Is().
var ErrMalformed = errors.New("malformed feed")

// Contains the parts of a GTFS Realtime feed needed to serve
// arrivals. Entities keep the order of the feed.
type Feed struct {
	Version   string
	Timestamp *time.Time
	Entities  []Entity
}

// An entity without a TripUpdate carried vehicle positions or alerts,
// neither of which is retained.
type Entity struct {
	ID         string
	TripUpdate *TripUpdate
}

type TripUpdate struct {
	TripID          string
	RouteID         string
	StopTimeUpdates []StopTimeUpdate
}

// Arrival and Departure are epoch seconds, and nil unless the feed
// set the event's time field. A delay-only event counts as unset.
type StopTimeUpdate struct {
	StopID       string
	StopSequence *uint32
	Arrival      *int64
	Departure    *int64
}

// The time a train is expected at the stop. Departure wins over
// arrival when both are present, as it's when the train actually
// leaves. Returns false if neither is set.
func (u StopTimeUpdate) EventTime() (int64, bool) {
	if u.Departure != nil {
		return *u.Departure, true
	}
	if u.Arrival != nil {
		return *u.Arrival, true
	}
	return 0, false
}

func ParseRealtime(buf []byte) (*Feed, error) {
	f := &gtfsproto.FeedMessage{}
	err := proto.Unmarshal(buf, f)
	if err != nil {
		return nil, fmt.Errorf("%w: unmarshaling protobuf: %w", ErrMalformed, err)
	}

	feed := &Feed{
		Version:  f.GetHeader().GetGtfsRealtimeVersion(),
		Entities: make([]Entity, 0, len(f.GetEntity())),
	}

	if header := f.GetHeader(); header != nil && header.Timestamp != nil {
		ts := time.Unix(int64(header.GetTimestamp()), 0).UTC()
		feed.Timestamp = &ts
	}

	for _, entity := range f.GetEntity() {
		feed.Entities = append(feed.Entities, Entity{
			ID:         entity.GetId(),
			TripUpdate: parseTripUpdate(entity.GetTripUpdate()),
		})
	}

	return feed, nil
}

func parseTripUpdate(tu *gtfsproto.TripUpdate) *TripUpdate {
	if tu == nil {
		return nil
	}

	trip := tu.GetTrip()
	update := &TripUpdate{
		TripID:          trip.GetTripId(),
		RouteID:         trip.GetRouteId(),
		StopTimeUpdates: make([]StopTimeUpdate, 0, len(tu.GetStopTimeUpdate())),
	}

	for _, stu := range tu.GetStopTimeUpdate() {
		update.StopTimeUpdates = append(update.StopTimeUpdates, StopTimeUpdate{
			StopID:       stu.GetStopId(),
			StopSequence: stu.StopSequence,
			Arrival:      eventTime(stu.GetArrival()),
			Departure:    eventTime(stu.GetDeparture()),
		})
	}

	return update
}

func eventTime(event *gtfsproto.TripUpdate_StopTimeEvent) *int64 {
	if event == nil || event.Time == nil {
		return nil
	}
	t := event.GetTime()
	return &t
}
