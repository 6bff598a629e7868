package parse

import (
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"tidbyt.dev/arrivals/model"
)

type StopCSV struct {
	ID            string  `csv:"stop_id"`
	Code          string  `csv:"stop_code"`
	Name          string  `csv:"stop_name"`
	Desc          string  `csv:"stop_desc"`
	Lat           float64 `csv:"stop_lat"`
	Lon           float64 `csv:"stop_lon"`
	LocationType  int8    `csv:"location_type"`
	ParentStation string  `csv:"parent_station"`
	PlatformCode  string  `csv:"platform_code"`
}

// Parses a GTFS stops.txt. Stops are returned in file order.
func ParseStops(data io.Reader) ([]model.Stop, error) {
	// LazyCSVReader survives sloppy use of quotes. The BOM reader
	// strips unicode BOMs if present.
	stopCsv := []*StopCSV{}
	err := gocsv.UnmarshalCSV(gocsv.LazyCSVReader(bom.NewReader(data)), &stopCsv)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshaling stops csv")
	}

	stopIDs := map[string]bool{}
	parentRef := map[string]string{}
	stops := make([]model.Stop, 0, len(stopCsv))
	for i, st := range stopCsv {
		if st.ID == "" {
			return nil, errors.Errorf("empty stop_id (row %d)", i+1)
		}
		if stopIDs[st.ID] {
			return nil, errors.Errorf("repeated stop_id '%s'", st.ID)
		}
		stopIDs[st.ID] = true

		locationType := model.LocationType(st.LocationType)

		// stop_name, stop_lat and stop_lon are optional for
		// generic nodes and boarding areas, and otherwise
		// required.
		if locationType != model.LocationTypeGenericNode && locationType != model.LocationTypeBoardingArea {
			if st.Name == "" {
				return nil, errors.Errorf("empty stop_name for stop_id '%s'", st.ID)
			}
			if st.Lat == 0 || st.Lon == 0 {
				return nil, errors.Errorf("empty stop_lat or stop_lon for stop_id '%s'", st.ID)
			}
		}

		if st.ParentStation != "" {
			parentRef[st.ID] = st.ParentStation
		}

		stops = append(stops, model.Stop{
			ID:            st.ID,
			Code:          st.Code,
			Name:          st.Name,
			Desc:          st.Desc,
			Lat:           st.Lat,
			Lon:           st.Lon,
			LocationType:  locationType,
			ParentStation: st.ParentStation,
			PlatformCode:  st.PlatformCode,
		})
	}

	for stopID, parentID := range parentRef {
		if !stopIDs[parentID] {
			return nil, errors.Errorf("stop '%s' references unknown parent_station '%s'", stopID, parentID)
		}
	}

	return stops, nil
}

// Maps stop ID to stop name. Platforms without a name of their own
// (MTA's G35N and G35S, for instance) inherit it from their parent
// station.
func StopNames(stops []model.Stop) map[string]string {
	byID := make(map[string]model.Stop, len(stops))
	for _, s := range stops {
		byID[s.ID] = s
	}

	names := make(map[string]string, len(stops))
	for _, s := range stops {
		name := s.Name
		if name == "" && s.ParentStation != "" {
			name = byID[s.ParentStation].Name
		}
		if name != "" {
			names[s.ID] = name
		}
	}
	return names
}
