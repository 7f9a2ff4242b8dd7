package persist

import (
	"sync"
)

// MemoryStore keeps snapshots in process memory. It is the default backend
// and the one tests use.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]byte)}
}

func (s *MemoryStore) Load(component string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.snapshots[component]
	if !ok {
		return nil, notFound(component)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Save(component string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.snapshots[component] = stored
	return nil
}

func (s *MemoryStore) Delete(component string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, component)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
