package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"tidbyt.dev/arrivals/model"
	"tidbyt.dev/arrivals/present"
	"tidbyt.dev/arrivals/storage"
)

type ArrivalJSON struct {
	TripID    string    `json:"trip_id"`
	RouteID   string    `json:"route_id"`
	EventTime time.Time `json:"event_time"`
	Display   string    `json:"display"`
}

type ArrivalsResponse struct {
	StationID     string        `json:"station_id"`
	StationName   string        `json:"station_name"`
	FeedTimestamp *time.Time    `json:"feed_timestamp"`
	Arrivals      []ArrivalJSON `json:"arrivals"`
}

type SnapshotJSON struct {
	PolledAt      time.Time     `json:"polled_at"`
	FeedTimestamp *time.Time    `json:"feed_timestamp"`
	Arrivals      []ArrivalJSON `json:"arrivals"`
}

type HistoryResponse struct {
	StationID string         `json:"station_id"`
	Snapshots []SnapshotJSON `json:"snapshots"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Board view model
type BoardPage struct {
	StationID   string
	StationName string
	Banner      string
	FeedAge     string
	Lines       []string
	Notice      string
	Failure     string
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")

	page := BoardPage{
		StationID:   stationID,
		StationName: s.stationName(stationID),
		Banner:      present.Banner(s.now(), s.Location),
	}

	status := http.StatusOK
	result, err := s.arrivals(r, stationID)
	if err != nil {
		page.Failure = present.Failure(err)
		status = http.StatusBadGateway
	} else {
		page.FeedAge = present.FeedAge(result.FeedTimestamp, s.now())
		page.Lines = present.Lines(result.Arrivals, s.Location)
		if len(result.Arrivals) == 0 {
			page.Notice = present.NoArrivals
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.renderer.Render(w, "board.html", page); err != nil {
		s.Logger.Error().Err(err).Msg("rendering board")
	}
}

func (s *Server) handleArrivals(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")

	result, err := s.arrivals(r, stationID)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: present.Failure(err)})
		return
	}

	writeJSON(w, http.StatusOK, ArrivalsResponse{
		StationID:     stationID,
		StationName:   s.stationName(stationID),
		FeedTimestamp: result.FeedTimestamp,
		Arrivals:      s.arrivalsJSON(result.Arrivals),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	snapshots, err := s.Log.ListSnapshots(storage.SnapshotFilter{
		StationID: stationID,
		Limit:     limit,
	})
	if err != nil {
		s.Logger.Error().Err(err).Str("station", stationID).Msg("listing snapshots")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to list snapshots"})
		return
	}

	response := HistoryResponse{
		StationID: stationID,
		Snapshots: make([]SnapshotJSON, 0, len(snapshots)),
	}
	for _, snap := range snapshots {
		response.Snapshots = append(response.Snapshots, SnapshotJSON{
			PolledAt:      snap.PolledAt,
			FeedTimestamp: snap.FeedTimestamp,
			Arrivals:      s.arrivalsJSON(snap.Arrivals),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) arrivalsJSON(arrivals []model.Arrival) []ArrivalJSON {
	result := make([]ArrivalJSON, 0, len(arrivals))
	for _, a := range arrivals {
		result = append(result, ArrivalJSON{
			TripID:    a.TripID,
			RouteID:   a.RouteID,
			EventTime: a.Time().UTC(),
			Display:   present.Line(a, s.Location),
		})
	}
	return result
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
