// Package fsm implements a generic per-session finite state machine runtime.
// Definitions declare states, events, guarded transitions and terminal
// states; the engine instantiates them per (session, definition) pair and
// drives them with events.
package fsm

import (
	"github.com/XiaoConstantine/mnemo-go/pkg/errors"
)

// TransitionKey addresses one transition in a definition's table.
type TransitionKey struct {
	State string
	Event string
}

// GuardFunc decides whether a transition may fire given the instance
// context. The context passed in already includes the pending patch, so
// guards see the state the instance would be in after the merge.
type GuardFunc func(ctx map[string]any) bool

// Definition declares a state machine. Concrete workflows are supplied by
// callers; the engine hardcodes none.
type Definition struct {
	ID          string
	Initial     string
	States      []string
	Terminal    []string
	Transitions map[TransitionKey]string
	Guards      map[TransitionKey]GuardFunc

	states   map[string]bool
	terminal map[string]bool
}

// Validate checks internal consistency: the initial state and every
// transition endpoint must be declared states, and terminal states must be
// a subset of the state set.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return errors.New(errors.ValidationFailed, "definition requires an id")
	}
	if len(d.States) == 0 {
		return errors.New(errors.ValidationFailed, "definition requires at least one state")
	}

	d.states = make(map[string]bool, len(d.States))
	for _, s := range d.States {
		d.states[s] = true
	}

	if !d.states[d.Initial] {
		return errors.WithFields(
			errors.New(errors.ValidationFailed, "initial state is not a declared state"),
			errors.Fields{"definition": d.ID, "initial": d.Initial},
		)
	}

	d.terminal = make(map[string]bool, len(d.Terminal))
	for _, s := range d.Terminal {
		if !d.states[s] {
			return errors.WithFields(
				errors.New(errors.ValidationFailed, "terminal state is not a declared state"),
				errors.Fields{"definition": d.ID, "terminal": s},
			)
		}
		d.terminal[s] = true
	}

	for key, to := range d.Transitions {
		if !d.states[key.State] {
			return errors.WithFields(
				errors.New(errors.ValidationFailed, "transition source is not a declared state"),
				errors.Fields{"definition": d.ID, "state": key.State, "event": key.Event},
			)
		}
		if !d.states[to] {
			return errors.WithFields(
				errors.New(errors.ValidationFailed, "transition target is not a declared state"),
				errors.Fields{"definition": d.ID, "state": key.State, "event": key.Event, "target": to},
			)
		}
	}

	for key := range d.Guards {
		if _, ok := d.Transitions[key]; !ok {
			return errors.WithFields(
				errors.New(errors.ValidationFailed, "guard declared for an undeclared transition"),
				errors.Fields{"definition": d.ID, "state": key.State, "event": key.Event},
			)
		}
	}

	return nil
}

// IsTerminal reports whether state is one of the definition's terminal
// states. Validate must have run first.
func (d *Definition) IsTerminal(state string) bool {
	return d.terminal[state]
}

// TaskWorkflow returns the built-in multi-step task definition:
// planning -> executing -> verifying -> {done, failed}, with retry back to
// executing when verification finds problems.
func TaskWorkflow() Definition {
	return Definition{
		ID:       "task",
		Initial:  "planning",
		States:   []string{"planning", "executing", "verifying", "done", "failed"},
		Terminal: []string{"done", "failed"},
		Transitions: map[TransitionKey]string{
			{State: "planning", Event: "execute"}: "executing",
			{State: "executing", Event: "verify"}: "verifying",
			{State: "verifying", Event: "pass"}:   "done",
			{State: "verifying", Event: "retry"}:  "executing",
			{State: "verifying", Event: "fail"}:   "failed",
			{State: "planning", Event: "abort"}:   "failed",
			{State: "executing", Event: "abort"}:  "failed",
			{State: "verifying", Event: "abort"}:  "failed",
		},
	}
}
