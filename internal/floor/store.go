// Package floor mirrors the backend's view of the restaurant floor: the
// table collection and the staff notification queue. The Store is read-only
// to callers; the Engine is the only writer.
package floor

import (
	"sort"
	"sync"

	"github.com/zulandar/tableside/internal/protocol"
)

// Store holds tables keyed by id and the notification queue in arrival
// order. Reads may happen from any goroutine; writes happen only through
// Engine.Apply, one event per write lock.
type Store struct {
	mu     sync.RWMutex
	tables map[int]protocol.Table
	queue  []protocol.NotificationEntry
	index  map[string]struct{} // ids present in queue
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		tables: make(map[int]protocol.Table),
		index:  make(map[string]struct{}),
	}
}

// Table returns the table with the given id.
func (s *Store) Table(id int) (protocol.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[id]
	return t, ok
}

// Status returns the status of table id, or "" if the table is unknown.
func (s *Store) Status(id int) protocol.TableStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[id].Status
}

// Tables returns every table ordered by table number, then id.
func (s *Store) Tables() []protocol.Table {
	s.mu.RLock()
	out := make([]protocol.Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TableCount returns the number of known tables.
func (s *Store) TableCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables)
}

// Queue returns a copy of the notification queue, oldest first.
func (s *Store) Queue() []protocol.NotificationEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.NotificationEntry, len(s.queue))
	copy(out, s.queue)
	return out
}

// QueueLen returns the number of queued entries.
func (s *Store) QueueLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queue)
}

// HasEntry reports whether an entry with the id is queued.
func (s *Store) HasEntry(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// The helpers below assume s.mu is held for writing.

func (s *Store) replaceTables(tables []protocol.Table) {
	s.tables = make(map[int]protocol.Table, len(tables))
	for _, t := range tables {
		s.tables[t.ID] = t
	}
}

func (s *Store) putTable(t protocol.Table) (prev protocol.Table, existed bool) {
	prev, existed = s.tables[t.ID]
	s.tables[t.ID] = t
	return prev, existed
}

func (s *Store) replaceQueue(entries []protocol.NotificationEntry) {
	s.queue = make([]protocol.NotificationEntry, 0, len(entries))
	s.index = make(map[string]struct{}, len(entries))
	for _, e := range entries {
		s.appendEntry(e)
	}
}

// appendEntry adds e at the tail unless its id is already queued.
func (s *Store) appendEntry(e protocol.NotificationEntry) bool {
	if _, ok := s.index[e.ID]; ok {
		return false
	}
	s.queue = append(s.queue, e)
	s.index[e.ID] = struct{}{}
	return true
}

// removeEntry drops the entry with the id wherever it sits.
func (s *Store) removeEntry(id string) bool {
	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	for i := range s.queue {
		if s.queue[i].ID == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	return true
}
