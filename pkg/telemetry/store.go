// Package telemetry holds the latest UPS reading and serves copy-out
// snapshots to publishers.
package telemetry

import (
	"sync"
	"time"

	"github.com/kmatveev/upsmon/pkg/models"
)

// Store is the single cross-goroutine contact point of the daemon: the
// polling scheduler is its only writer, publishers are concurrent readers.
// Updates swap a reading pointer under the lock, so a reader can never
// observe a half-written reading.
type Store struct {
	mu         sync.RWMutex
	startedAt  time.Time
	reading    *models.Reading
	alarms     models.AlarmSet
	connection models.ConnectionStatus
	updatedAt  time.Time
}

func NewStore() *Store {
	return &Store{
		startedAt:  time.Now(),
		connection: models.ConnectionConnecting,
	}
}

// Update replaces the current reading and its alarm set atomically and
// marks the link connected.
func (s *Store) Update(reading models.Reading, alarms models.AlarmSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := reading
	s.reading = &r
	s.alarms = alarms
	s.connection = models.ConnectionConnected
	s.updatedAt = time.Now()
}

// MarkConnecting downgrades the connection status while the scheduler is
// (re)establishing the link. The last good reading is retained.
func (s *Store) MarkConnecting() {
	s.setConnection(models.ConnectionConnecting)
}

// MarkDegraded records that polling is failing but the threshold for a
// forced reconnect has not been reached.
func (s *Store) MarkDegraded() {
	s.setConnection(models.ConnectionDegraded)
}

// MarkReconnecting records that the link is being torn down and reopened.
func (s *Store) MarkReconnecting() {
	s.setConnection(models.ConnectionReconnecting)
}

func (s *Store) setConnection(c models.ConnectionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connection = c
}

// StartedAt returns the daemon start time uptime is derived from.
func (s *Store) StartedAt() time.Time {
	return s.startedAt
}

// Snapshot returns a copy of the current state. It never blocks beyond the
// time to copy a small fixed-size structure, and always returns the last
// known reading even while disconnected so consumers have something to
// show.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reading *models.Reading

	if s.reading != nil {
		r := *s.reading
		reading = &r
	}

	var alarms models.AlarmSet

	if len(s.alarms) > 0 {
		alarms = append(alarms, s.alarms...)
	}

	return models.Snapshot{
		Reading:    reading,
		Alarms:     alarms,
		Connection: s.connection,
		Uptime:     models.FormatUptime(time.Since(s.startedAt)),
		UpdatedAt:  s.updatedAt,
	}
}
