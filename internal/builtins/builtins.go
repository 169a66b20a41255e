// ABOUTME: Registers the built-in interview tools on a tools.Registry
// ABOUTME: Defines the dependencies the tools need from state, store, and bus

package builtins

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/2389/interview-gateway/internal/events"
	"github.com/2389/interview-gateway/internal/store"
	"github.com/2389/interview-gateway/internal/tools"
)

// PhaseController is the part of the state coordinator the tools use.
type PhaseController interface {
	Phase() string
	AllowedTools() []string
	NextPhase() (string, error)
}

// Publisher emits events onto the bus.
type Publisher interface {
	Emit(p events.Payload)
}

// Deps are the collaborators of the built-in tools.
type Deps struct {
	State  PhaseController
	Store  store.Store
	Bus    Publisher
	Logger *slog.Logger
}

// RegisterAll registers every built-in tool.
func RegisterAll(r *tools.Registry, deps Deps) error {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	logger := deps.Logger.With("component", "builtins")

	interview := &interviewHandlers{state: deps.State, bus: deps.Bus, logger: logger}
	ui := newUIHandlers(logger)
	docs := &artifactHandlers{store: deps.Store}

	all := []*tools.Tool{
		{
			Name:        "agent_ready",
			Description: "Signal that the interviewer has read its instructions and is ready to begin. Can be called once.",
			Handle:      interview.AgentReady,
		},
		{
			Name:        "next_phase",
			Description: "Advance the interview to the next phase once the current phase's objectives are met.",
			Handle:      interview.NextPhase,
		},
		{
			Name:        "update_objective",
			Description: "Record progress on an interview objective.",
			Handle:      interview.UpdateObjective,
		},
		{
			Name:        "validate_profile",
			Description: "Check a drafted profile for missing required fields before submitting it to the user.",
			Handle:      interview.ValidateProfile,
		},
		{
			Name:        "submit_for_validation",
			Description: "Show the drafted profile to the user for review. Completes when the user confirms or edits it.",
			Handle:      ui.SubmitForValidation,
		},
		{
			Name:        "get_user_upload",
			Description: "Ask the user to upload documents such as a resume or writing samples. Completes when the upload has been processed.",
			Handle:      ui.GetUserUpload,
		},
		{
			Name:        "ask_user_question",
			Description: "Ask the user a question and wait for their answer.",
			Handle:      ui.AskUserQuestion,
			Resume:      ui.ResumeQuestion,
		},
		{
			Name:        "get_artifact",
			Description: "Fetch the full extracted text of an uploaded document by artifact_id.",
			Handle:      docs.Get,
		},
		{
			Name:        "list_artifacts",
			Description: "List uploaded documents with their artifact_ids and summaries.",
			Handle:      docs.List,
		},
	}

	for _, t := range all {
		if err := r.Register(t); err != nil {
			return fmt.Errorf("registering %s: %w", t.Name, err)
		}
	}
	logger.Info("built-in tools registered", "count", len(all))
	return nil
}

// immediate marshals v as an Immediate result.
func immediate(v any) (tools.Result, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding output: %w", err)
	}
	return tools.Immediate{Output: out}, nil
}

// decode parses call arguments. Empty arguments decode as an empty object.
func decode(call tools.Call, v any) error {
	if len(call.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(call.Arguments, v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}
