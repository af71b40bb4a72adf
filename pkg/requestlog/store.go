package requestlog

import "sync"

// DefaultCapacity is the entry limit used when none is specified.
const DefaultCapacity = 1000

// Store extends Logger with retrieval for user inspection.
type Store interface {
	Logger

	// Get retrieves a log entry by ID, or nil.
	Get(id string) *Entry

	// List returns all entries, newest first.
	List() []*Entry

	// Clear removes all entries.
	Clear()

	// Count returns the number of stored entries.
	Count() int
}

// MemoryStore is a bounded in-memory Store. When full, the oldest entry is
// evicted. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	entries  []*Entry
	byID     map[string]*Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore holding at most capacity entries.
// A capacity <= 0 falls back to DefaultCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		capacity: capacity,
		byID:     make(map[string]*Entry),
	}
}

// Log records an entry, evicting the oldest one if at capacity.
func (s *MemoryStore) Log(entry *Entry) {
	if entry == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.capacity {
		evicted := s.entries[0]
		s.entries = s.entries[1:]
		delete(s.byID, evicted.ID)
	}
	s.entries = append(s.entries, entry)
	s.byID[entry.ID] = entry
}

// Get retrieves an entry by ID, or nil.
func (s *MemoryStore) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id]
}

// List returns all entries, newest first.
func (s *MemoryStore) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Entry, len(s.entries))
	for i, e := range s.entries {
		out[len(s.entries)-1-i] = e
	}
	return out
}

// Clear removes all entries.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byID = make(map[string]*Entry)
}

// Count returns the number of stored entries.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
