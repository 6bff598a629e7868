package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"tidbyt.dev/arrivals/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteLog struct {
	SQLiteConfig

	db *sql.DB
}

func NewSQLiteLog(cfg ...SQLiteConfig) (*SQLiteLog, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = directory + "/arrivals.db"
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: gets its own database.
	if !onDisk {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS snapshot (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    station_id TEXT NOT NULL,
    feed_url TEXT NOT NULL,
    polled_at TIMESTAMP NOT NULL,
    feed_timestamp TIMESTAMP
);

CREATE INDEX IF NOT EXISTS snapshot_station ON snapshot (station_id, polled_at);

CREATE TABLE IF NOT EXISTS snapshot_arrival (
    snapshot_id INTEGER NOT NULL,
    idx INTEGER NOT NULL,
    trip_id TEXT NOT NULL,
    route_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    event_time INTEGER NOT NULL,
PRIMARY KEY (snapshot_id, idx)
);
`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &SQLiteLog{
		SQLiteConfig: SQLiteConfig{OnDisk: onDisk, Directory: directory},
		db:           db,
	}, nil
}

func (s *SQLiteLog) WriteSnapshot(snapshot *Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var feedTimestamp interface{}
	if snapshot.FeedTimestamp != nil {
		feedTimestamp = snapshot.FeedTimestamp.UTC()
	}

	res, err := tx.Exec(`
INSERT INTO snapshot (station_id, feed_url, polled_at, feed_timestamp)
VALUES (?, ?, ?, ?)`,
		snapshot.StationID,
		snapshot.FeedURL,
		snapshot.PolledAt.UTC(),
		feedTimestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting snapshot id: %w", err)
	}

	stmt, err := tx.Prepare(`
INSERT INTO snapshot_arrival (snapshot_id, idx, trip_id, route_id, stop_id, event_time)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, a := range snapshot.Arrivals {
		_, err = stmt.Exec(id, i, a.TripID, a.RouteID, a.StopID, a.EventTime)
		if err != nil {
			return fmt.Errorf("inserting arrival: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	return nil
}

func (s *SQLiteLog) ListSnapshots(filter SnapshotFilter) ([]*Snapshot, error) {
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
		conditions = append(conditions, "station_id = ?")
		params = append(params, filter.StationID)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "polled_at >= ?")
		params = append(params, filter.Since.UTC())
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
	ids := []interface{}{}
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

	arrivalRows, err := s.db.Query(fmt.Sprintf(`
SELECT snapshot_id, trip_id, route_id, stop_id, event_time
FROM snapshot_arrival
WHERE snapshot_id IN (%s)
ORDER BY snapshot_id, idx`, strings.Repeat("?, ", len(ids)-1)+"?"), ids...)
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

func (s *SQLiteLog) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("closing db: %w", err)
	}
	return nil
}

// Compile time check
var _ ArrivalLog = (*SQLiteLog)(nil)

