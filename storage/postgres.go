package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"tidbyt.dev/arrivals/model"
)

type PSQLLog struct {
	db *sql.DB
}

// Creates a new Postgres ArrivalLog using the provided connection
// string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLLog(connStr string, clearDB bool) (*PSQLLog, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		_, err = db.Exec(`
DROP TABLE IF EXISTS snapshot_arrival;
DROP TABLE IF EXISTS snapshot;
`)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS snapshot (
    id BIGSERIAL PRIMARY KEY,
    station_id TEXT NOT NULL,
    feed_url TEXT NOT NULL,
    polled_at TIMESTAMPTZ NOT NULL,
    feed_timestamp TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS snapshot_station ON snapshot (station_id, polled_at);

CREATE TABLE IF NOT EXISTS snapshot_arrival (
    snapshot_id BIGINT NOT NULL REFERENCES snapshot (id) ON DELETE CASCADE,
    idx INTEGER NOT NULL,
    trip_id TEXT NOT NULL,
    route_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    event_time BIGINT NOT NULL,
    PRIMARY KEY (snapshot_id, idx)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &PSQLLog{
		db: db,
	}, nil
}

func (s *PSQLLog) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

func (s *PSQLLog) WriteSnapshot(snapshot *Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var feedTimestamp sql.NullTime
	if snapshot.FeedTimestamp != nil {
		feedTimestamp = sql.NullTime{Time: snapshot.FeedTimestamp.UTC(), Valid: true}
	}

	var id int64
	err = tx.QueryRow(`
INSERT INTO snapshot (station_id, feed_url, polled_at, feed_timestamp)
VALUES ($1, $2, $3, $4)
RETURNING id`,
		snapshot.StationID,
		snapshot.FeedURL,
		snapshot.PolledAt.UTC(),
		feedTimestamp,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	if len(snapshot.Arrivals) > 0 {
		stmt, err := tx.Prepare(pq.CopyIn(
			"snapshot_arrival", "snapshot_id", "idx", "trip_id", "route_id", "stop_id", "event_time",
		))
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for i, a := range snapshot.Arrivals {
			_, err = stmt.Exec(id, i, a.TripID, a.RouteID, a.StopID, a.EventTime)
			if err != nil {
				return fmt.Errorf("COPY arrival: %w", err)
			}
		}

		_, err = stmt.Exec()
		if err != nil {
			return fmt.Errorf("executing statement: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	return nil
}

func (s *PSQLLog) ListSnapshots(filter SnapshotFilter) ([]*Snapshot, error) {
	query := `
SELECT
    id,
    station_id,
    feed_url,
    polled_at,
    feed_timestamp
FROM snapshot`

	conditions := []string{}
	params := []interface{}{}
	if filter.StationID != "" {
		params = append(params, filter.StationID)
		conditions = append(conditions, fmt.Sprintf("station_id = $%d", len(params)))
	}
	if !filter.Since.IsZero() {
		params = append(params, filter.Since.UTC())
		conditions = append(conditions, fmt.Sprintf("polled_at >= $%d", len(params)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY polled_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []*Snapshot{}
	byID := map[int64]*Snapshot{}
	ids := []int64{}
	for rows.Next() {
		var id int64
		var feedTimestamp sql.NullTime
		snapshot := &Snapshot{Arrivals: []model.Arrival{}}
		err := rows.Scan(
			&id,
			&snapshot.StationID,
			&snapshot.FeedURL,
			&snapshot.PolledAt,
			&feedTimestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snapshot.PolledAt = snapshot.PolledAt.UTC()
		if feedTimestamp.Valid {
			ts := feedTimestamp.Time.UTC()
			snapshot.FeedTimestamp = &ts
		}

		snapshots = append(snapshots, snapshot)
		byID[id] = snapshot
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}

	if len(ids) == 0 {
		return snapshots, nil
	}

	arrivalRows, err := s.db.Query(`
SELECT snapshot_id, trip_id, route_id, stop_id, event_time
FROM snapshot_arrival
WHERE snapshot_id = ANY($1)
ORDER BY snapshot_id, idx`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("listing arrivals: %w", err)
	}
	defer arrivalRows.Close()

	for arrivalRows.Next() {
		var id int64
		var a model.Arrival
		err := arrivalRows.Scan(&id, &a.TripID, &a.RouteID, &a.StopID, &a.EventTime)
		if err != nil {
			return nil, fmt.Errorf("scanning arrival: %w", err)
		}
		byID[id].Arrivals = append(byID[id].Arrivals, a)
	}
	if err := arrivalRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating arrivals: %w", err)
	}

	return snapshots, nil
}

var _ ArrivalLog = (*PSQLLog)(nil)
