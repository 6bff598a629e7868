package storage

import (
	"sort"
	"sync"

	"tidbyt.dev/arrivals/model"
)

// In memory ArrivalLog. Lost on restart, but handy for tests and
// short lived watchers.
type MemoryLog struct {
	mutex     sync.Mutex
	snapshots []*Snapshot
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (m *MemoryLog) WriteSnapshot(snapshot *Snapshot) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.snapshots = append(m.snapshots, copySnapshot(snapshot))
	return nil
}

func (m *MemoryLog) ListSnapshots(filter SnapshotFilter) ([]*Snapshot, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// Walk backwards so that ties on PolledAt resolve to the most
	// recently written.
	result := []*Snapshot{}
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		s := m.snapshots[i]
		if filter.StationID != "" && s.StationID != filter.StationID {
			continue
		}
		if !filter.Since.IsZero() && s.PolledAt.Before(filter.Since) {
			continue
		}
		result = append(result, copySnapshot(s))
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PolledAt.After(result[j].PolledAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

func (m *MemoryLog) Close() error {
	return nil
}

func copySnapshot(s *Snapshot) *Snapshot {
	c := *s
	c.Arrivals = make([]model.Arrival, len(s.Arrivals))
	copy(c.Arrivals, s.Arrivals)
	if s.FeedTimestamp != nil {
		ts := *s.FeedTimestamp
		c.FeedTimestamp = &ts
	}
	return &c
}
