package experience

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/XiaoConstantine/mnemo-go/pkg/config"
	"github.com/XiaoConstantine/mnemo-go/pkg/errors"
	"github.com/XiaoConstantine/mnemo-go/pkg/logging"
	"github.com/XiaoConstantine/mnemo-go/pkg/persist"
)

// Component is the snapshot unit name used with persist.Store.
const Component = "experience"

// Store is the bounded experience log. Entries are held in ascending ID
// order; queries return copies so callers can never mutate stored state.
type Store struct {
	mu      sync.RWMutex
	cfg     config.ExperienceConfig
	entries []Entry
	nextID  uint64

	persistStore persist.Store
	degraded     bool
	logger       *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPersistence attaches a snapshot backend. The store loads its snapshot
// on construction and saves after every mutating operation.
func WithPersistence(p persist.Store) Option {
	return func(s *Store) {
		s.persistStore = p
	}
}

// WithLogger overrides the global logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// snapshot is the persisted form of the store.
type snapshot struct {
	NextID  uint64  `json:"next_id"`
	Entries []Entry `json:"entries"`
}

// NewStore creates an experience store. A missing snapshot starts the store
// empty; a corrupt one is logged and ignored, keeping memory authoritative.
func NewStore(cfg config.ExperienceConfig, opts ...Option) *Store {
	s := &Store{
		cfg:    cfg,
		nextID: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.GetLogger()
	}
	s.load()
	return s
}

func (s *Store) load() {
	if s.persistStore == nil {
		return
	}

	data, err := s.persistStore.Load(Component)
	if err != nil {
		if errors.CodeOf(err) != errors.ResourceNotFound {
			s.logger.Warn(context.Background(), "experience: snapshot load failed, starting empty: %v", err)
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn(context.Background(), "experience: corrupt snapshot, starting empty: %v", err)
		return
	}

	s.entries = snap.Entries
	s.nextID = snap.NextID
	if s.nextID == 0 {
		s.nextID = 1
	}
}

// flush saves the current state. A failed save degrades the store to
// memory-only for the rest of the process.
func (s *Store) flush() {
	if s.persistStore == nil || s.degraded {
		return
	}

	snap := snapshot{NextID: s.nextID, Entries: s.entries}
	data, err := json.Marshal(snap)
	if err == nil {
		err = s.persistStore.Save(Component, data)
	}
	if err != nil {
		s.degraded = true
		s.logger.Warn(context.Background(),
			"experience: snapshot save failed, continuing memory-only: %v",
			errors.Wrap(err, errors.StorageFailed, "snapshot save failed"))
	}
}

// Record appends a new entry and returns its assigned ID. The entry's
// SessionID, Action and a valid Outcome are required. When the post-insert
// size exceeds MaxEntries the oldest entries are evicted.
func (s *Store) Record(e Entry) (uint64, error) {
	if e.SessionID == "" {
		return 0, errors.New(errors.ValidationFailed, "experience requires a session id")
	}
	if e.Action == "" {
		return 0, errors.New(errors.ValidationFailed, "experience requires an action")
	}
	if !e.Outcome.Valid() {
		return 0, errors.WithFields(
			errors.New(errors.ValidationFailed, "experience requires a valid outcome"),
			errors.Fields{"outcome": string(e.Outcome)},
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.nextID
	s.nextID++
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.ToolsUsed = append([]string(nil), e.ToolsUsed...)
	e.Tags = append([]string(nil), e.Tags...)

	s.entries = append(s.entries, e)
	if excess := len(s.entries) - s.cfg.MaxEntries; excess > 0 {
		s.evictLocked(excess)
	}

	s.flush()
	return e.ID, nil
}

// Query returns entries matching the filter, newest first. The limit is
// clamped to MaxQueryLimit; non-positive limits mean "as many as allowed".
func (s *Store) Query(f Filter, limit, offset int) []Entry {
	if limit <= 0 || limit > s.cfg.MaxQueryLimit {
		limit = s.cfg.MaxQueryLimit
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	skipped := 0
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.entries[i]
		if !f.matches(e) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, copyEntry(e))
	}
	return out
}

// Get returns the entry with the given ID.
func (s *Store) Get(id uint64) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].ID == id {
			return copyEntry(s.entries[i]), nil
		}
	}
	return Entry{}, errors.WithFields(
		errors.New(errors.ResourceNotFound, "experience not found"),
		errors.Fields{"id": id},
	)
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// CountByOutcome tallies stored entries per outcome.
func (s *Store) CountByOutcome() map[Outcome]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[Outcome]int, 3)
	for _, e := range s.entries {
		totals[e.Outcome]++
	}
	return totals
}

// EvictOldest removes the n lowest-ID entries and returns how many were
// actually removed.
func (s *Store) EvictOldest(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.evictLocked(n)
	if removed > 0 {
		s.flush()
	}
	return removed
}

func (s *Store) evictLocked(n int) int {
	if n <= 0 {
		return 0
	}
	if n > len(s.entries) {
		n = len(s.entries)
	}
	s.entries = append([]Entry(nil), s.entries[n:]...)
	return n
}

// Flush forces a snapshot save even when no mutation happened since the
// last one.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persistStore == nil {
		return nil
	}

	snap := snapshot{NextID: s.nextID, Entries: s.entries}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to marshal experience snapshot")
	}
	if err := s.persistStore.Save(Component, data); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to save experience snapshot")
	}
	s.degraded = false
	return nil
}

func copyEntry(e Entry) Entry {
	e.ToolsUsed = append([]string(nil), e.ToolsUsed...)
	e.Tags = append([]string(nil), e.Tags...)
	return e
}
