// Package pattern mines recorded action streams for recurring sub-sequences.
// Candidates live in a bounded working set fed by a per-session sliding
// window; sequences that recur often enough inside the recency window are
// promoted into knowledge.
package pattern

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/XiaoConstantine/mnemo-go/pkg/config"
	"github.com/XiaoConstantine/mnemo-go/pkg/errors"
	"github.com/XiaoConstantine/mnemo-go/pkg/logging"
	"github.com/XiaoConstantine/mnemo-go/pkg/persist"
)

// Component is the snapshot unit name used with persist.Store.
const Component = "pattern"

// sigSeparator joins action names into candidate keys. It never appears in
// tool names.
const sigSeparator = "\x1f"

// Pattern is a promoted recurring action sequence.
type Pattern struct {
	Signature  []string  `json:"signature"`
	Support    int       `json:"support"`
	LastSeenAt time.Time `json:"last_seen_at"`
	Confidence float64   `json:"confidence"`
}

// candidate is a working-set entry that has not been promoted yet.
type candidate struct {
	Signature  []string  `json:"signature"`
	Support    int       `json:"support"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Detector maintains the candidate working set. Memory stays bounded
// independent of session length: windows are capped and candidates that age
// out of the recency window are dropped on the next promotion sweep.
type Detector struct {
	mu         sync.Mutex
	cfg        config.PatternConfig
	windows    map[string][]string
	candidates map[string]*candidate

	persistStore persist.Store
	degraded     bool
	logger       *logging.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithPersistence attaches a snapshot backend.
func WithPersistence(p persist.Store) Option {
	return func(d *Detector) {
		d.persistStore = p
	}
}

// WithLogger overrides the global logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Detector) {
		d.logger = l
	}
}

type snapshot struct {
	Windows    map[string][]string   `json:"windows"`
	Candidates map[string]*candidate `json:"candidates"`
}

// NewDetector creates a pattern detector. A missing snapshot starts it
// empty; a corrupt one is logged and ignored.
func NewDetector(cfg config.PatternConfig, opts ...Option) *Detector {
	d := &Detector{
		cfg:        cfg,
		windows:    make(map[string][]string),
		candidates: make(map[string]*candidate),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.GetLogger()
	}
	d.load()
	return d
}

func (d *Detector) load() {
	if d.persistStore == nil {
		return
	}

	data, err := d.persistStore.Load(Component)
	if err != nil {
		if errors.CodeOf(err) != errors.ResourceNotFound {
			d.logger.Warn(context.Background(), "pattern: snapshot load failed, starting empty: %v", err)
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		d.logger.Warn(context.Background(), "pattern: corrupt snapshot, starting empty: %v", err)
		return
	}

	if snap.Windows != nil {
		d.windows = snap.Windows
	}
	if snap.Candidates != nil {
		d.candidates = snap.Candidates
	}
}

func (d *Detector) flush() {
	if d.persistStore == nil || d.degraded {
		return
	}

	snap := snapshot{Windows: d.windows, Candidates: d.candidates}
	data, err := json.Marshal(snap)
	if err == nil {
		err = d.persistStore.Save(Component, data)
	}
	if err != nil {
		d.degraded = true
		d.logger.Warn(context.Background(),
			"pattern: snapshot save failed, continuing memory-only: %v",
			errors.Wrap(err, errors.StorageFailed, "snapshot save failed"))
	}
}

// Observe feeds the actions of one recorded experience into the session's
// sliding window. For every sub-sequence length k in [2, MaxPatternLength]
// ending at each new action, the matching candidate's support is incremented
// and its recency refreshed.
func (d *Detector) Observe(sessionID string, actions []string, now time.Time) {
	if sessionID == "" || len(actions) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	window := d.windows[sessionID]
	for _, action := range actions {
		if action == "" {
			continue
		}
		window = append(window, action)
		if len(window) > d.cfg.WindowSize {
			window = append([]string(nil), window[len(window)-d.cfg.WindowSize:]...)
		}

		maxK := d.cfg.MaxPatternLength
		if maxK > len(window) {
			maxK = len(window)
		}
		for k := 2; k <= maxK; k++ {
			sig := window[len(window)-k:]
			key := strings.Join(sig, sigSeparator)
			c, ok := d.candidates[key]
			if !ok {
				c = &candidate{Signature: append([]string(nil), sig...)}
				d.candidates[key] = c
			}
			c.Support++
			c.LastSeenAt = now
		}
	}
	d.windows[sessionID] = window

	d.flush()
}

// Promote returns every candidate whose support reached MinSupport within
// the recency window and removes it from the working set, so a promoted
// pattern is never represented twice. Candidates that aged out of the
// recency window are dropped during the same sweep. Results are ordered by
// support descending, then signature.
func (d *Detector) Promote(now time.Time) []Pattern {
	d.mu.Lock()
	defer d.mu.Unlock()

	var promoted []Pattern
	for key, c := range d.candidates {
		if now.Sub(c.LastSeenAt) > d.cfg.RecencyWindow {
			delete(d.candidates, key)
			continue
		}
		if c.Support < d.cfg.MinSupport {
			continue
		}
		promoted = append(promoted, Pattern{
			Signature:  append([]string(nil), c.Signature...),
			Support:    c.Support,
			LastSeenAt: c.LastSeenAt,
			Confidence: float64(c.Support) / float64(c.Support+1),
		})
		delete(d.candidates, key)
	}

	sort.Slice(promoted, func(i, j int) bool {
		if promoted[i].Support != promoted[j].Support {
			return promoted[i].Support > promoted[j].Support
		}
		return strings.Join(promoted[i].Signature, sigSeparator) <
			strings.Join(promoted[j].Signature, sigSeparator)
	})

	d.flush()
	return promoted
}

// WorkingSetSize returns the number of candidate signatures currently held.
func (d *Detector) WorkingSetSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.candidates)
}

// Support returns the current support counter for a signature, zero when
// the signature is not in the working set.
func (d *Detector) Support(signature []string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.candidates[strings.Join(signature, sigSeparator)]
	if !ok {
		return 0
	}
	return c.Support
}

// DropSession discards a session's sliding window. Candidate counters are
// kept; they age out through the recency window.
func (d *Detector) DropSession(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.windows, sessionID)
	d.flush()
}

// Flush forces a snapshot save.
func (d *Detector) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.persistStore == nil {
		return nil
	}

	snap := snapshot{Windows: d.windows, Candidates: d.candidates}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to marshal pattern snapshot")
	}
	if err := d.persistStore.Save(Component, data); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to save pattern snapshot")
	}
	d.degraded = false
	return nil
}
