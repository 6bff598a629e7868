package feeds

import (
	"strings"
)

// Directory of the MTA's subway GTFS Realtime feeds. The MTA splits
// the subway over several feeds, grouped by line.

const (
	BaseURL = "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/"

	// The G line feed.
	DefaultURL = BaseURL + "nyct%2Fgtfs-g"

	// Flushing Av on the G, northbound.
	DefaultStation = "G35N"
)

var feedByRoute = map[string]string{
	"1":  "nyct%2Fgtfs",
	"2":  "nyct%2Fgtfs",
	"3":  "nyct%2Fgtfs",
	"4":  "nyct%2Fgtfs",
	"5":  "nyct%2Fgtfs",
	"6":  "nyct%2Fgtfs",
	"7":  "nyct%2Fgtfs",
	"GS": "nyct%2Fgtfs",
	"A":  "nyct%2Fgtfs-ace",
	"C":  "nyct%2Fgtfs-ace",
	"E":  "nyct%2Fgtfs-ace",
	"H":  "nyct%2Fgtfs-ace",
	"FS": "nyct%2Fgtfs-ace",
	"B":  "nyct%2Fgtfs-bdfm",
	"D":  "nyct%2Fgtfs-bdfm",
	"F":  "nyct%2Fgtfs-bdfm",
	"M":  "nyct%2Fgtfs-bdfm",
	"G":  "nyct%2Fgtfs-g",
	"J":  "nyct%2Fgtfs-jz",
	"Z":  "nyct%2Fgtfs-jz",
	"L":  "nyct%2Fgtfs-l",
	"N":  "nyct%2Fgtfs-nqrw",
	"Q":  "nyct%2Fgtfs-nqrw",
	"R":  "nyct%2Fgtfs-nqrw",
	"W":  "nyct%2Fgtfs-nqrw",
	"SI": "nyct%2Fgtfs-si",
}

// Returns the realtime feed carrying the given subway route. Route
// names are case insensitive, and express variants ("6X", "7X") map
// to their local's feed. "SIR" is accepted for the Staten Island
// Railway.
func URLForRoute(route string) (string, bool) {
	route = strings.ToUpper(strings.TrimSpace(route))
	if route == "SIR" {
		route = "SI"
	}
	if len(route) == 2 && route[1] == 'X' {
		route = route[:1]
	}

	feed, ok := feedByRoute[route]
	if !ok {
		return "", false
	}
	return BaseURL + feed, true
}

// Splits an MTA platform ID into parent station and direction,
// e.g. "G35N" into "G35" and "N". Stop IDs without a direction
// suffix are returned as is, with blank direction.
func Direction(stopID string) (string, string) {
	if len(stopID) < 2 {
		return stopID, ""
	}
	switch suffix := stopID[len(stopID)-1:]; suffix {
	case "N", "S":
		return stopID[:len(stopID)-1], suffix
	}
	return stopID, ""
}
