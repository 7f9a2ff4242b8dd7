package fsm

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/XiaoConstantine/mnemo-go/pkg/errors"
	"github.com/XiaoConstantine/mnemo-go/pkg/logging"
	"github.com/XiaoConstantine/mnemo-go/pkg/persist"
)

// Component is the snapshot unit name used with persist.Store.
const Component = "fsm"

// HistoryEntry records one state the instance passed through.
type HistoryEntry struct {
	State     string    `json:"state"`
	EnteredAt time.Time `json:"entered_at"`
}

// Instance is one live state machine. History is append-only;
// CurrentState is always a member of the definition's state set.
type Instance struct {
	SessionID    string         `json:"session_id"`
	DefinitionID string         `json:"definition_id"`
	CurrentState string         `json:"current_state"`
	History      []HistoryEntry `json:"history"`
	Context      map[string]any `json:"context"`
}

type instanceKey struct {
	sessionID    string
	definitionID string
}

// Engine runs state machine instances, one per (session, definition) pair.
// Definitions are registered up front (guards are functions and cannot be
// persisted); instances snapshot and reload across restarts.
type Engine struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
	instances   map[instanceKey]*Instance

	persistStore persist.Store
	degraded     bool
	logger       *logging.Logger
	now          func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithPersistence attaches a snapshot backend.
func WithPersistence(p persist.Store) Option {
	return func(e *Engine) {
		e.persistStore = p
	}
}

// WithLogger overrides the global logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock overrides the time source used for history stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

type snapshot struct {
	Instances []Instance `json:"instances"`
}

// NewEngine creates a state machine engine. A missing snapshot starts it
// with no instances; a corrupt one is logged and ignored.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		definitions: make(map[string]*Definition),
		instances:   make(map[instanceKey]*Instance),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.GetLogger()
	}
	e.load()
	return e
}

func (e *Engine) load() {
	if e.persistStore == nil {
		return
	}

	data, err := e.persistStore.Load(Component)
	if err != nil {
		if errors.CodeOf(err) != errors.ResourceNotFound {
			e.logger.Warn(context.Background(), "fsm: snapshot load failed, starting empty: %v", err)
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		e.logger.Warn(context.Background(), "fsm: corrupt snapshot, starting empty: %v", err)
		return
	}

	for i := range snap.Instances {
		inst := snap.Instances[i]
		e.instances[instanceKey{inst.SessionID, inst.DefinitionID}] = &inst
	}
}

func (e *Engine) flush() {
	if e.persistStore == nil || e.degraded {
		return
	}

	data, err := json.Marshal(e.snapshotLocked())
	if err == nil {
		err = e.persistStore.Save(Component, data)
	}
	if err != nil {
		e.degraded = true
		e.logger.Warn(context.Background(),
			"fsm: snapshot save failed, continuing memory-only: %v",
			errors.Wrap(err, errors.StorageFailed, "snapshot save failed"))
	}
}

func (e *Engine) snapshotLocked() snapshot {
	snap := snapshot{Instances: make([]Instance, 0, len(e.instances))}
	for _, inst := range e.instances {
		snap.Instances = append(snap.Instances, copyInstance(inst))
	}
	return snap
}

// RegisterDefinition validates and registers a definition. Registering an
// already-known ID fails; definitions are immutable once registered.
func (e *Engine) RegisterDefinition(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.definitions[def.ID]; ok {
		return errors.WithFields(
			errors.New(errors.InvalidInput, "definition already registered"),
			errors.Fields{"definition": def.ID},
		)
	}
	e.definitions[def.ID] = &def
	return nil
}

// Definitions returns the registered definition IDs.
func (e *Engine) Definitions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]string, 0, len(e.definitions))
	for id := range e.definitions {
		out = append(out, id)
	}
	return out
}

// Start creates an instance of the definition for the session, in the
// definition's initial state. A live non-terminal instance for the same
// pair makes Start fail with AlreadyActive; a terminal leftover is
// replaced.
func (e *Engine) Start(sessionID, definitionID string, initialContext map[string]any) (Instance, error) {
	if sessionID == "" {
		return Instance{}, errors.New(errors.ValidationFailed, "start requires a session id")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	def, ok := e.definitions[definitionID]
	if !ok {
		return Instance{}, definitionNotFound(definitionID)
	}

	key := instanceKey{sessionID, definitionID}
	if existing, ok := e.instances[key]; ok && !def.IsTerminal(existing.CurrentState) {
		return Instance{}, errors.WithFields(
			errors.New(errors.AlreadyActive, "an instance is already active for this session"),
			errors.Fields{"session_id": sessionID, "definition": definitionID, "state": existing.CurrentState},
		)
	}

	inst := &Instance{
		SessionID:    sessionID,
		DefinitionID: definitionID,
		CurrentState: def.Initial,
		History:      []HistoryEntry{{State: def.Initial, EnteredAt: e.now()}},
		Context:      copyContext(initialContext),
	}
	e.instances[key] = inst

	e.flush()
	return copyInstance(inst), nil
}

// Fire applies an event to the session's instance. On success the context
// patch is merged, the state advances and a history entry is appended; on
// any failure the instance is left untouched.
func (e *Engine) Fire(sessionID, definitionID, event string, contextPatch map[string]any) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	def, ok := e.definitions[definitionID]
	if !ok {
		return "", definitionNotFound(definitionID)
	}

	key := instanceKey{sessionID, definitionID}
	inst, ok := e.instances[key]
	if !ok {
		return "", instanceNotFound(sessionID, definitionID)
	}

	if def.IsTerminal(inst.CurrentState) {
		return "", errors.WithFields(
			errors.New(errors.InstanceTerminated, "instance reached a terminal state"),
			errors.Fields{"session_id": sessionID, "definition": definitionID, "state": inst.CurrentState},
		)
	}

	tk := TransitionKey{State: inst.CurrentState, Event: event}
	next, ok := def.Transitions[tk]
	if !ok {
		return "", errors.WithFields(
			errors.New(errors.InvalidTransition, "no transition for event in current state"),
			errors.Fields{"session_id": sessionID, "definition": definitionID, "state": inst.CurrentState, "event": event},
		)
	}

	// Guards see the merged context, but the merge is applied to the
	// instance only after they pass.
	merged := copyContext(inst.Context)
	for k, v := range contextPatch {
		merged[k] = v
	}

	if guard, ok := def.Guards[tk]; ok && !guard(merged) {
		return "", errors.WithFields(
			errors.New(errors.GuardRejected, "transition rejected by guard"),
			errors.Fields{"session_id": sessionID, "definition": definitionID, "state": inst.CurrentState, "event": event},
		)
	}

	inst.Context = merged
	inst.CurrentState = next
	inst.History = append(inst.History, HistoryEntry{State: next, EnteredAt: e.now()})

	e.flush()
	return next, nil
}

// Reset discards the session's instance, terminal or not.
func (e *Engine) Reset(sessionID, definitionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := instanceKey{sessionID, definitionID}
	if _, ok := e.instances[key]; !ok {
		return instanceNotFound(sessionID, definitionID)
	}
	delete(e.instances, key)

	e.flush()
	return nil
}

// CurrentState returns the session instance's current state.
func (e *Engine) CurrentState(sessionID, definitionID string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	inst, ok := e.instances[instanceKey{sessionID, definitionID}]
	if !ok {
		return "", instanceNotFound(sessionID, definitionID)
	}
	return inst.CurrentState, nil
}

// Instance returns a copy of the session's instance.
func (e *Engine) Instance(sessionID, definitionID string) (Instance, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	inst, ok := e.instances[instanceKey{sessionID, definitionID}]
	if !ok {
		return Instance{}, instanceNotFound(sessionID, definitionID)
	}
	return copyInstance(inst), nil
}

// InstanceCount returns the number of tracked instances, terminal included.
func (e *Engine) InstanceCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.instances)
}

// LiveCount returns the number of non-terminal instances. Instances whose
// definition is not registered count as live.
func (e *Engine) LiveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	live := 0
	for _, inst := range e.instances {
		def, ok := e.definitions[inst.DefinitionID]
		if !ok || !def.IsTerminal(inst.CurrentState) {
			live++
		}
	}
	return live
}

// Flush forces a snapshot save.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.persistStore == nil {
		return nil
	}

	data, err := json.Marshal(e.snapshotLocked())
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to marshal fsm snapshot")
	}
	if err := e.persistStore.Save(Component, data); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to save fsm snapshot")
	}
	e.degraded = false
	return nil
}

func copyInstance(inst *Instance) Instance {
	out := *inst
	out.History = append([]HistoryEntry(nil), inst.History...)
	out.Context = copyContext(inst.Context)
	return out
}

func copyContext(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		out[k] = v
	}
	return out
}

func definitionNotFound(definitionID string) error {
	return errors.WithFields(
		errors.New(errors.ResourceNotFound, "state machine definition not found"),
		errors.Fields{"definition": definitionID},
	)
}

func instanceNotFound(sessionID, definitionID string) error {
	return errors.WithFields(
		errors.New(errors.ResourceNotFound, "no instance for session"),
		errors.Fields{"session_id": sessionID, "definition": definitionID},
	)
}
