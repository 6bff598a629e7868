package model

import (
	"time"
)

// Holds all external facing types and constants.

type LocationType int

const (
	LocationTypeStop LocationType = iota
	LocationTypeStation
	LocationTypeEntranceExit
	LocationTypeGenericNode
	LocationTypeBoardingArea
)

// A stop or station from a static GTFS stops.txt.
type Stop struct {
	ID            string
	Code          string
	Name          string
	Desc          string
	Lat           float64
	Lon           float64
	LocationType  LocationType
	ParentStation string
	PlatformCode  string
}

// A train predicted to arrive at (or depart from) a stop. EventTime
// is in epoch seconds, and is the departure time when the feed
// provides one, the arrival time otherwise.
type Arrival struct {
	TripID    string
	RouteID   string
	StopID    string
	EventTime int64
}

func (a Arrival) Time() time.Time {
	return time.Unix(a.EventTime, 0)
}
