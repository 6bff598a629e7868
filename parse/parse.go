package parse

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"tidbyt.dev/arrivals/model"
)

// Reads stops.txt out of a static GTFS zip. Only the stops are needed
// to put names on station IDs, so the rest of the archive is ignored.
func ParseStaticStops(buf []byte) ([]model.Stop, error) {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("unzipping: %w", err)
	}

	for _, f := range r.File {
		// There should not be any subdirectories. But, some
		// agencies don't care.
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		if path[len(path)-1] != "stops.txt" {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		defer rc.Close()

		stops, err := ParseStops(rc)
		if err != nil {
			return nil, fmt.Errorf("parsing stops.txt: %w", err)
		}
		return stops, nil
	}

	return nil, fmt.Errorf("missing stops.txt")
}
