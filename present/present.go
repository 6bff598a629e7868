package present

import (
	"errors"
	"fmt"
	"io"
	"time"

	"tidbyt.dev/arrivals"
	"tidbyt.dev/arrivals/downloader"
	"tidbyt.dev/arrivals/model"
	"tidbyt.dev/arrivals/parse"
)

const (
	// Shown when the feed was fine, but nothing is headed for the
	// station.
	NoArrivals = "No upcoming trains"

	TimeLayout   = "03:04:05 PM"
	BannerLayout = "Monday, January 02   03:04 PM"
)

// E.g. "Route G - Arriving at 05:42:13 PM", in the given location.
func Line(a model.Arrival, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return fmt.Sprintf("Route %s - Arriving at %s", a.RouteID, a.Time().In(loc).Format(TimeLayout))
}

func Lines(arrivals []model.Arrival, loc *time.Location) []string {
	lines := make([]string, 0, len(arrivals))
	for _, a := range arrivals {
		lines = append(lines, Line(a, loc))
	}
	return lines
}

// A short, user facing description of a pipeline failure.
func Failure(err error) string {
	switch {
	case errors.Is(err, downloader.ErrNetwork):
		return fmt.Sprintf("Could not reach feed: %v", err)
	case errors.Is(err, parse.ErrMalformed):
		return fmt.Sprintf("Could not decode feed: %v", err)
	}
	if _, ok := downloader.StatusCode(err); ok {
		return fmt.Sprintf("Could not reach feed: %v", err)
	}
	return fmt.Sprintf("Error: %v", err)
}

// Writes the outcome of a pipeline run, one line per arrival. An
// empty result and a failure are never rendered the same way.
func Text(w io.Writer, result *arrivals.Result, err error, loc *time.Location) error {
	if err != nil {
		_, werr := fmt.Fprintln(w, Failure(err))
		return werr
	}

	if result == nil || len(result.Arrivals) == 0 {
		_, werr := fmt.Fprintln(w, NoArrivals)
		return werr
	}

	for _, line := range Lines(result.Arrivals, loc) {
		if _, werr := fmt.Fprintln(w, line); werr != nil {
			return werr
		}
	}
	return nil
}

// Left side of the display banner, e.g. "Friday, March 01   05:42 PM".
func Banner(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(BannerLayout)
}

// How stale the feed is, e.g. "Updated 42s ago". Blank if the feed
// carried no timestamp.
func FeedAge(feedTimestamp *time.Time, now time.Time) string {
	if feedTimestamp == nil {
		return ""
	}
	age := now.Sub(*feedTimestamp)
	if age < 0 {
		age = 0
	}
	if age < time.Minute {
		return fmt.Sprintf("Updated %ds ago", int(age.Seconds()))
	}
	return fmt.Sprintf("Updated %dm ago", int(age.Minutes()))
}
