package arrivals

import (
	"sort"

	"tidbyt.dev/arrivals/model"
	"tidbyt.dev/arrivals/parse"
)

// Finds every stop time update in the feed for the given stop.
//
// Stop IDs are compared exactly. On the MTA feeds, the direction is
// part of the ID, so G35N and G35S are different stations here.
// Updates lacking both arrival and departure time are skipped, as are
// entities carrying something other than a trip update. Arrivals are
// returned in feed order.
func Extract(feed *parse.Feed, stationID string) []model.Arrival {
	result := []model.Arrival{}
	if feed == nil {
		return result
	}

	for _, entity := range feed.Entities {
		tu := entity.TripUpdate
		if tu == nil {
			continue
		}

		for _, stu := range tu.StopTimeUpdates {
			if stu.StopID != stationID {
				continue
			}

			eventTime, ok := stu.EventTime()
			if !ok {
				continue
			}

			result = append(result, model.Arrival{
				TripID:    tu.TripID,
				RouteID:   tu.RouteID,
				StopID:    stu.StopID,
				EventTime: eventTime,
			})
		}
	}

	return result
}

// Orders arrivals soonest first. The sort is stable, so arrivals with
// identical times keep their feed order. The input is left untouched.
func Rank(arrivals []model.Arrival) []model.Arrival {
	ranked := make([]model.Arrival, len(arrivals))
	copy(ranked, arrivals)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EventTime < ranked[j].EventTime
	})

	return ranked
}
