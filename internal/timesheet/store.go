package timesheet

import (
	"sync"

	"crewsheet/internal/hours"
)

// Change reports what an upsert did.
type Change string

const (
	Created Change = "created"
	Updated Change = "updated"
)

// Store holds the three record collections of one session. Collections are
// returned in insertion order; an updated entry keeps its original position.
type Store struct {
	mu        sync.RWMutex
	entries   []Entry
	index     map[EntryKey]int
	labor     []LaborRecord
	materials []MaterialRecord
	revision  uint64
}

func NewStore() *Store {
	return &Store{index: make(map[EntryKey]int)}
}

// UpsertEntry inserts e or updates the entry with the same key in place.
// On update hours are replaced, the project is replaced only when e carries
// one, and notes are merged without duplicates.
func (s *Store) UpsertEntry(e Entry) (Entry, Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revision++
	k := e.Key().fold()
	if i, ok := s.index[k]; ok {
		cur := s.entries[i]
		cur.Hours = e.Hours
		if e.Project != "" {
			cur.Project = e.Project
		}
		cur.Notes = hours.MergeNotes(cur.Notes, e.Notes)
		s.entries[i] = cur
		return cur, Updated
	}
	s.index[k] = len(s.entries)
	s.entries = append(s.entries, e)
	return e, Created
}

// AppendLabor stores r and returns it with its sequence number assigned.
func (s *Store) AppendLabor(r LaborRecord) LaborRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revision++
	r.Seq = len(s.labor) + 1
	s.labor = append(s.labor, r)
	return r
}

// AppendMaterial stores r and returns it with its sequence number assigned.
func (s *Store) AppendMaterial(r MaterialRecord) MaterialRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revision++
	r.Seq = len(s.materials) + 1
	s.materials = append(s.materials, r)
	return r
}

// Entry looks up an entry by key.
func (s *Store) Entry(k EntryKey) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[k.fold()]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

func (s *Store) Labor() []LaborRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LaborRecord(nil), s.labor...)
}

func (s *Store) Materials() []MaterialRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]MaterialRecord(nil), s.materials...)
}

// Counts returns the sizes of the three collections.
func (s *Store) Counts() (entries, labor, materials int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), len(s.labor), len(s.materials)
}

// Revision increases on every mutation.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}
