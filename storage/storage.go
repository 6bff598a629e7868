package storage

import (
	"fmt"
	"time"

	"tidbyt.dev/arrivals/model"
)

// Records of arrivals seen while polling a feed. Nothing in the
// pipeline reads these back: it's history for the operator, not a
// cache.
type ArrivalLog interface {
	// Writes a snapshot. Arrivals are stored in the order given.
	WriteSnapshot(snapshot *Snapshot) error

	// Retrieves snapshots matching the filter, most recently
	// polled first.
	ListSnapshots(filter SnapshotFilter) ([]*Snapshot, error)

	Close() error
}

// The ranked arrivals for a station, as of one poll.
type Snapshot struct {
	StationID string
	FeedURL   string
	PolledAt  time.Time

	// The feed header's timestamp, if it had one.
	FeedTimestamp *time.Time

	Arrivals []model.Arrival
}

type SnapshotFilter struct {
	// If set, only include snapshots for this station.
	StationID string

	// If set, only include snapshots polled at or after this
	// time.
	Since time.Time

	// If >0, at most this many snapshots are returned.
	Limit int
}

// Opens an ArrivalLog by driver name. For "sqlite", dsn is the
// directory holding the database file, or blank for an in-memory
// database. For "postgres", it's the connection string.
func Open(driver string, dsn string) (ArrivalLog, error) {
	switch driver {
	case "memory":
		return NewMemoryLog(), nil
	case "sqlite":
		if dsn == "" {
			return NewSQLiteLog()
		}
		return NewSQLiteLog(SQLiteConfig{OnDisk: true, Directory: dsn})
	case "postgres":
		return NewPSQLLog(dsn, false)
	}
	return nil, fmt.Errorf("unknown storage driver %q", driver)
}
