package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/mnemo-go/pkg/errors"
	"github.com/XiaoConstantine/mnemo-go/pkg/persist"
)

// jobDefinition is the minimal two-step machine used across tests.
func jobDefinition() Definition {
	return Definition{
		ID:       "job",
		Initial:  "idle",
		States:   []string{"idle", "running", "done"},
		Terminal: []string{"done"},
		Transitions: map[TransitionKey]string{
			{State: "idle", Event: "start"}:     "running",
			{State: "running", Event: "finish"}: "done",
		},
	}
}

func newEngineWith(t *testing.T, defs ...Definition) *Engine {
	t.Helper()
	e := NewEngine()
	for _, d := range defs {
		require.NoError(t, e.RegisterDefinition(d))
	}
	return e
}

func TestDefinitionValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition)
	}{
		{
			name:   "missing id",
			mutate: func(d *Definition) { d.ID = "" },
		},
		{
			name:   "no states",
			mutate: func(d *Definition) { d.States = nil },
		},
		{
			name:   "initial not declared",
			mutate: func(d *Definition) { d.Initial = "limbo" },
		},
		{
			name:   "terminal not declared",
			mutate: func(d *Definition) { d.Terminal = []string{"limbo"} },
		},
		{
			name: "transition source not declared",
			mutate: func(d *Definition) {
				d.Transitions[TransitionKey{State: "limbo", Event: "x"}] = "idle"
			},
		},
		{
			name: "transition target not declared",
			mutate: func(d *Definition) {
				d.Transitions[TransitionKey{State: "idle", Event: "x"}] = "limbo"
			},
		},
		{
			name: "guard without transition",
			mutate: func(d *Definition) {
				d.Guards = map[TransitionKey]GuardFunc{
					{State: "idle", Event: "nothing"}: func(map[string]any) bool { return true },
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := jobDefinition()
			tt.mutate(&def)
			err := def.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.ValidationFailed, errors.CodeOf(err))
		})
	}
}

func TestRegisterDefinition(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RegisterDefinition(jobDefinition()))

	err := e.RegisterDefinition(jobDefinition())
	require.Error(t, err)
	assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))

	assert.Contains(t, e.Definitions(), "job")
}

func TestHappyPathToTerminal(t *testing.T) {
	e := newEngineWith(t, jobDefinition())

	inst, err := e.Start("s1", "job", map[string]any{"task": "build"})
	require.NoError(t, err)
	assert.Equal(t, "idle", inst.CurrentState)
	require.Len(t, inst.History, 1)
	assert.Equal(t, "idle", inst.History[0].State)

	state, err := e.Fire("s1", "job", "start", nil)
	require.NoError(t, err)
	assert.Equal(t, "running", state)

	state, err = e.Fire("s1", "job", "finish", map[string]any{"result": "ok"})
	require.NoError(t, err)
	assert.Equal(t, "done", state)

	final, err := e.Instance("s1", "job")
	require.NoError(t, err)
	assert.Equal(t, []string{"idle", "running", "done"}, historyStates(final))
	assert.Equal(t, "build", final.Context["task"])
	assert.Equal(t, "ok", final.Context["result"])
}

func TestFireAfterTerminalFails(t *testing.T) {
	e := newEngineWith(t, jobDefinition())
	_, err := e.Start("s1", "job", nil)
	require.NoError(t, err)
	_, err = e.Fire("s1", "job", "start", nil)
	require.NoError(t, err)
	_, err = e.Fire("s1", "job", "finish", nil)
	require.NoError(t, err)

	_, err = e.Fire("s1", "job", "start", nil)
	require.Error(t, err)
	assert.Equal(t, errors.InstanceTerminated, errors.CodeOf(err))

	// The terminal instance stays queryable until Reset.
	state, err := e.CurrentState("s1", "job")
	require.NoError(t, err)
	assert.Equal(t, "done", state)
}

func TestInvalidTransitionLeavesStateUnchanged(t *testing.T) {
	e := newEngineWith(t, jobDefinition())
	_, err := e.Start("s1", "job", map[string]any{"k": "v"})
	require.NoError(t, err)

	_, err = e.Fire("s1", "job", "finish", map[string]any{"should": "not apply"})
	require.Error(t, err)
	assert.Equal(t, errors.InvalidTransition, errors.CodeOf(err))

	inst, err := e.Instance("s1", "job")
	require.NoError(t, err)
	assert.Equal(t, "idle", inst.CurrentState)
	assert.Len(t, inst.History, 1, "no history entry on failed fire")
	assert.NotContains(t, inst.Context, "should", "no partial context mutation")
}

func TestGuards(t *testing.T) {
	def := jobDefinition()
	def.Guards = map[TransitionKey]GuardFunc{
		{State: "idle", Event: "start"}: func(ctx map[string]any) bool {
			ok, _ := ctx["approved"].(bool)
			return ok
		},
	}
	e := newEngineWith(t, def)
	_, err := e.Start("s1", "job", nil)
	require.NoError(t, err)

	t.Run("guard rejects", func(t *testing.T) {
		_, err := e.Fire("s1", "job", "start", nil)
		require.Error(t, err)
		assert.Equal(t, errors.GuardRejected, errors.CodeOf(err))

		inst, _ := e.Instance("s1", "job")
		assert.Equal(t, "idle", inst.CurrentState)
		assert.NotContains(t, inst.Context, "approved", "rejected patch is not merged")
	})

	t.Run("guard sees the pending patch", func(t *testing.T) {
		state, err := e.Fire("s1", "job", "start", map[string]any{"approved": true})
		require.NoError(t, err)
		assert.Equal(t, "running", state)

		inst, _ := e.Instance("s1", "job")
		assert.Equal(t, true, inst.Context["approved"])
	})
}

func TestAlreadyActive(t *testing.T) {
	e := newEngineWith(t, jobDefinition())
	_, err := e.Start("s1", "job", nil)
	require.NoError(t, err)

	_, err = e.Start("s1", "job", nil)
	require.Error(t, err)
	assert.Equal(t, errors.AlreadyActive, errors.CodeOf(err))

	// A different session is unaffected.
	_, err = e.Start("s2", "job", nil)
	assert.NoError(t, err)
}

func TestStartReplacesTerminalInstance(t *testing.T) {
	e := newEngineWith(t, jobDefinition())
	_, err := e.Start("s1", "job", nil)
	require.NoError(t, err)
	_, err = e.Fire("s1", "job", "start", nil)
	require.NoError(t, err)
	_, err = e.Fire("s1", "job", "finish", nil)
	require.NoError(t, err)

	inst, err := e.Start("s1", "job", nil)
	require.NoError(t, err)
	assert.Equal(t, "idle", inst.CurrentState)
	assert.Len(t, inst.History, 1)
}

func TestReset(t *testing.T) {
	e := newEngineWith(t, jobDefinition())
	_, err := e.Start("s1", "job", nil)
	require.NoError(t, err)

	require.NoError(t, e.Reset("s1", "job"))

	_, err = e.CurrentState("s1", "job")
	assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))

	err = e.Reset("s1", "job")
	assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))

	// After reset the session can start fresh.
	_, err = e.Start("s1", "job", nil)
	assert.NoError(t, err)
}

func TestUnknownDefinitionAndInstance(t *testing.T) {
	e := newEngineWith(t, jobDefinition())

	_, err := e.Start("s1", "ghost", nil)
	assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))

	_, err = e.Fire("s1", "job", "start", nil)
	assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err), "fire without start")
}

func TestInstanceReturnsCopies(t *testing.T) {
	e := newEngineWith(t, jobDefinition())
	_, err := e.Start("s1", "job", map[string]any{"k": "original"})
	require.NoError(t, err)

	inst, err := e.Instance("s1", "job")
	require.NoError(t, err)
	inst.Context["k"] = "mutated"
	inst.History[0].State = "mutated"

	again, _ := e.Instance("s1", "job")
	assert.Equal(t, "original", again.Context["k"])
	assert.Equal(t, "idle", again.History[0].State)
}

func TestCounts(t *testing.T) {
	e := newEngineWith(t, jobDefinition())
	_, err := e.Start("s1", "job", nil)
	require.NoError(t, err)
	_, err = e.Start("s2", "job", nil)
	require.NoError(t, err)

	_, err = e.Fire("s2", "job", "start", nil)
	require.NoError(t, err)
	_, err = e.Fire("s2", "job", "finish", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, e.InstanceCount())
	assert.Equal(t, 1, e.LiveCount())
}

func TestTaskWorkflow(t *testing.T) {
	def := TaskWorkflow()
	require.NoError(t, def.Validate())

	e := newEngineWith(t, def)
	_, err := e.Start("s1", "task", nil)
	require.NoError(t, err)

	for _, event := range []string{"execute", "verify", "retry", "verify", "pass"} {
		_, err := e.Fire("s1", "task", event, nil)
		require.NoError(t, err, "event %s", event)
	}

	state, err := e.CurrentState("s1", "task")
	require.NoError(t, err)
	assert.Equal(t, "done", state)
}

func TestRoundTrip(t *testing.T) {
	backend := persist.NewMemoryStore()

	e := NewEngine(WithPersistence(backend))
	require.NoError(t, e.RegisterDefinition(jobDefinition()))
	_, err := e.Start("s1", "job", map[string]any{"task": "build"})
	require.NoError(t, err)
	_, err = e.Fire("s1", "job", "start", nil)
	require.NoError(t, err)

	reloaded := NewEngine(WithPersistence(backend))
	require.NoError(t, reloaded.RegisterDefinition(jobDefinition()))

	state, err := reloaded.CurrentState("s1", "job")
	require.NoError(t, err)
	assert.Equal(t, "running", state)

	inst, err := reloaded.Instance("s1", "job")
	require.NoError(t, err)
	assert.Equal(t, []string{"idle", "running"}, historyStates(inst))
	assert.Equal(t, "build", inst.Context["task"])

	// The reloaded instance keeps running where it left off.
	next, err := reloaded.Fire("s1", "job", "finish", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", next)
}

func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	backend := persist.NewMemoryStore()
	require.NoError(t, backend.Save(Component, []byte("<xml?>")))

	e := NewEngine(WithPersistence(backend))
	assert.Equal(t, 0, e.InstanceCount())
}

func historyStates(inst Instance) []string {
	out := make([]string, len(inst.History))
	for i, h := range inst.History {
		out[i] = h.State
	}
	return out
}
