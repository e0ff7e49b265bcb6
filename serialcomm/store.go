// serialcomm/store.go
package serialcomm

import "sync"

// LastValueStore holds the most recently received payload. Every Update
// replaces the previous value, shorter and empty payloads included.
type LastValueStore struct {
	mu   sync.Mutex
	last []byte
}

func NewLastValueStore() *LastValueStore {
	return &LastValueStore{last: []byte{}}
}

// Update stores a copy of data.
func (s *LastValueStore) Update(data []byte) {
	cp := append([]byte{}, data...)
	s.mu.Lock()
	s.last = cp
	s.mu.Unlock()
}

// Snapshot returns a copy of the stored payload.
func (s *LastValueStore) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte{}, s.last...)
}
