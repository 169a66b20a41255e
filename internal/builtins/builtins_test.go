// ABOUTME: Tests for the built-in interview tools
// ABOUTME: Runs each tool through a real tools.Registry with a mock store and fake phase controller

package builtins

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/interview-gateway/internal/events"
	"github.com/2389/interview-gateway/internal/state"
	"github.com/2389/interview-gateway/internal/store"
	"github.com/2389/interview-gateway/internal/tools"
)

type fakePhases struct {
	names   []string
	current int
}

func (f *fakePhases) Phase() string          { return f.names[f.current] }
func (f *fakePhases) AllowedTools() []string { return []string{"next_phase"} }
func (f *fakePhases) NextPhase() (string, error) {
	if f.current == len(f.names)-1 {
		return "", state.ErrFinalPhase
	}
	f.current++
	return f.names[f.current], nil
}

type recordingBus struct {
	mu      sync.Mutex
	emitted []events.Payload
}

func (b *recordingBus) Emit(p events.Payload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitted = append(b.emitted, p)
}

type fixture struct {
	registry *tools.Registry
	phases   *fakePhases
	store    *store.MockStore
	bus      *recordingBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		registry: tools.NewRegistry(nil),
		phases:   &fakePhases{names: []string{"phase1_core_facts", "complete"}},
		store:    store.NewMockStore(),
		bus:      &recordingBus{},
	}
	require.NoError(t, RegisterAll(f.registry, Deps{State: f.phases, Store: f.store, Bus: f.bus}))
	return f
}

func (f *fixture) run(t *testing.T, name, args string) tools.Result {
	t.Helper()
	res, err := f.registry.Execute(t.Context(), tools.Call{ID: "call-" + name, Name: name, Arguments: json.RawMessage(args)})
	require.NoError(t, err)
	return res
}

func outputOf(t *testing.T, res tools.Result) map[string]any {
	t.Helper()
	imm, ok := res.(tools.Immediate)
	require.True(t, ok, "expected Immediate, got %T", res)
	var out map[string]any
	require.NoError(t, json.Unmarshal(imm.Output, &out))
	return out
}

func TestRegisterAll(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{
		"agent_ready", "ask_user_question", "get_artifact", "get_user_upload", "list_artifacts",
		"next_phase", "submit_for_validation", "update_objective", "validate_profile",
	}, f.registry.Names())

	assert.Error(t, RegisterAll(f.registry, Deps{}), "registering twice fails")
}

func TestAgentReady_DisablesItself(t *testing.T) {
	f := newFixture(t)
	out := outputOf(t, f.run(t, "agent_ready", ""))
	assert.Equal(t, "ready", out["status"])
	assert.Equal(t, "phase1_core_facts", out["phase"])
	assert.Equal(t, true, out["disable_after_use"])
}

func TestNextPhase(t *testing.T) {
	f := newFixture(t)

	out := outputOf(t, f.run(t, "next_phase", "{}"))
	assert.Equal(t, "phase1_core_facts", out["from"])
	assert.Equal(t, "complete", out["phase"])

	res := f.run(t, "next_phase", "{}")
	failed, ok := res.(tools.Failed)
	require.True(t, ok)
	assert.Contains(t, failed.Cause.Error(), "final phase")
}

func TestUpdateObjective(t *testing.T) {
	f := newFixture(t)

	out := outputOf(t, f.run(t, "update_objective", `{"objective_id":"work_history","status":"completed","notes":"3 roles"}`))
	assert.Equal(t, "recorded", out["status"])
	require.Len(t, f.bus.emitted, 1)
	assert.Equal(t, events.ObjectiveUpdated{ObjectiveID: "work_history", Status: "completed", Notes: "3 roles"}, f.bus.emitted[0])

	assert.IsType(t, tools.Failed{}, f.run(t, "update_objective", `{"objective_id":"x","status":"bogus"}`))
	assert.IsType(t, tools.Failed{}, f.run(t, "update_objective", `{"status":"completed"}`))
}

func TestValidateProfile(t *testing.T) {
	f := newFixture(t)

	out := outputOf(t, f.run(t, "validate_profile", `{"profile":{"name":"Jane","headline":"","summary":"Builds things"}}`))
	assert.Equal(t, "invalid", out["status"])
	assert.Equal(t, []any{"headline"}, out["missing"])
	assert.NotContains(t, out, "next_required_tool")

	out = outputOf(t, f.run(t, "validate_profile", `{"profile":{"name":"Jane","headline":"Engineer","summary":"Builds things"}}`))
	assert.Equal(t, "valid", out["status"])
	assert.Equal(t, "submit_for_validation", out["next_required_tool"])

	assert.IsType(t, tools.Failed{}, f.run(t, "validate_profile", `{}`))
	assert.IsType(t, tools.Failed{}, f.run(t, "validate_profile", `not json`))
}

func TestPendingUserActionTools(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, tools.PendingUserAction{}, f.run(t, "get_user_upload", `{"title":"Resume","prompt":"Upload your resume"}`))
	assert.IsType(t, tools.Failed{}, f.run(t, "get_user_upload", `{"title":"Resume"}`))

	assert.Equal(t, tools.PendingUserAction{}, f.run(t, "submit_for_validation", `{"profile":{"name":"Jane"}}`))
	assert.IsType(t, tools.Failed{}, f.run(t, "submit_for_validation", `{}`))
}

func TestAskUserQuestion_ResumeWithSelection(t *testing.T) {
	f := newFixture(t)

	res := f.run(t, "ask_user_question", `{"question":"Preferred role?","options":["IC","Manager"]}`)
	waiting, ok := res.(tools.Waiting)
	require.True(t, ok)
	assert.Equal(t, "Preferred role?", waiting.Message)
	assert.Equal(t, "ask_user_question", waiting.Continuation.ToolName)
	require.NotEmpty(t, waiting.Continuation.ID)

	resumed, err := f.registry.Resume(t.Context(), waiting.Continuation.ID, json.RawMessage(`{"selected":["IC"]}`))
	require.NoError(t, err)
	out := outputOf(t, resumed)
	assert.Equal(t, true, out["answered"])
	assert.Equal(t, []any{"IC"}, out["selected"])
	assert.Equal(t, "Preferred role?", out["question"])

	_, err = f.registry.Resume(t.Context(), waiting.Continuation.ID, json.RawMessage(`{"selected":["IC"]}`))
	assert.ErrorIs(t, err, tools.ErrNoPendingContinuation, "a continuation resumes once")
}

func TestAskUserQuestion_ResumeVariants(t *testing.T) {
	cases := []struct {
		name     string
		options  string
		input    string
		answered bool
		reason   string
		failed   bool
	}{
		{name: "free text string", input: `"I prefer remote work"`, answered: true},
		{name: "dismissed", input: `{"dismissed":true}`, reason: "dismissed"},
		{name: "empty", input: `{}`, reason: "no_response"},
		{name: "unknown option", options: `["A","B"]`, input: `{"selected":["C"]}`, failed: true},
		{name: "too many for single select", options: `["A","B"]`, input: `{"selected":["A","B"]}`, failed: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			args := `{"question":"Q?"}`
			if tc.options != "" {
				args = `{"question":"Q?","options":` + tc.options + `}`
			}
			waiting := f.run(t, "ask_user_question", args).(tools.Waiting)

			res, err := f.registry.Resume(t.Context(), waiting.Continuation.ID, json.RawMessage(tc.input))
			require.NoError(t, err)
			if tc.failed {
				assert.IsType(t, tools.Failed{}, res)
				return
			}
			out := outputOf(t, res)
			assert.Equal(t, tc.answered, out["answered"])
			if tc.reason != "" {
				assert.Equal(t, tc.reason, out["reason"])
			}
		})
	}
}

func TestAskUserQuestion_Validation(t *testing.T) {
	f := newFixture(t)
	assert.IsType(t, tools.Failed{}, f.run(t, "ask_user_question", `{"question":"  "}`))
	assert.IsType(t, tools.Failed{}, f.run(t, "ask_user_question", `{"question":"Q","options":["a","a"]}`))
}

func TestArtifactTools(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveArtifact(ctx, &store.Artifact{
		ID: "a1", Filename: "resume.pdf", ContentType: "application/pdf", ExtractedText: "Full resume text", Summary: "Engineer",
	}))

	out := outputOf(t, f.run(t, "get_artifact", `{"artifact_id":"a1"}`))
	assert.Equal(t, "Full resume text", out["text"])
	assert.Equal(t, "resume.pdf", out["filename"])

	assert.IsType(t, tools.Failed{}, f.run(t, "get_artifact", `{"artifact_id":"nope"}`))
	assert.IsType(t, tools.Failed{}, f.run(t, "get_artifact", `{}`))

	list := outputOf(t, f.run(t, "list_artifacts", ""))
	assert.Equal(t, float64(1), list["count"])
	items := list["artifacts"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "a1", items[0].(map[string]any)["artifact_id"])
	assert.Equal(t, "Engineer", items[0].(map[string]any)["summary"])
}
