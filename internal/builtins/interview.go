// ABOUTME: Interview flow tools: agent_ready, next_phase, update_objective, validate_profile
// ABOUTME: validate_profile chains into submit_for_validation when the draft is complete

package builtins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/interview-gateway/internal/events"
	"github.com/2389/interview-gateway/internal/state"
	"github.com/2389/interview-gateway/internal/tools"
)

// requiredProfileFields must be non-empty before a profile goes to the user.
var requiredProfileFields = []string{"name", "headline", "summary"}

var validObjectiveStatuses = map[string]bool{
	"pending":     true,
	"in_progress": true,
	"completed":   true,
	"skipped":     true,
}

type interviewHandlers struct {
	state  PhaseController
	bus    Publisher
	logger *slog.Logger
}

func (h *interviewHandlers) AgentReady(ctx context.Context, call tools.Call) (tools.Result, error) {
	return immediate(map[string]any{
		"status":            "ready",
		"phase":             h.state.Phase(),
		"available_tools":   h.state.AllowedTools(),
		"disable_after_use": true,
	})
}

func (h *interviewHandlers) NextPhase(ctx context.Context, call tools.Call) (tools.Result, error) {
	from := h.state.Phase()
	to, err := h.state.NextPhase()
	if errors.Is(err, state.ErrFinalPhase) {
		return tools.Failed{Cause: fmt.Errorf("interview is already in its final phase %q", from)}, nil
	}
	if err != nil {
		return nil, err
	}
	return immediate(map[string]any{
		"status":          "advanced",
		"from":            from,
		"phase":           to,
		"available_tools": h.state.AllowedTools(),
	})
}

type updateObjectiveInput struct {
	ObjectiveID string `json:"objective_id"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
}

func (h *interviewHandlers) UpdateObjective(ctx context.Context, call tools.Call) (tools.Result, error) {
	var in updateObjectiveInput
	if err := decode(call, &in); err != nil {
		return tools.Failed{Cause: err}, nil
	}
	if in.ObjectiveID == "" {
		return tools.Failed{Cause: errors.New("objective_id is required")}, nil
	}
	if !validObjectiveStatuses[in.Status] {
		return tools.Failed{Cause: fmt.Errorf("invalid status %q", in.Status)}, nil
	}

	if h.bus != nil {
		h.bus.Emit(events.ObjectiveUpdated{ObjectiveID: in.ObjectiveID, Status: in.Status, Notes: in.Notes})
	}
	return immediate(map[string]string{"status": "recorded", "objective_id": in.ObjectiveID})
}

type validateProfileInput struct {
	Profile map[string]any `json:"profile"`
}

func (h *interviewHandlers) ValidateProfile(ctx context.Context, call tools.Call) (tools.Result, error) {
	var in validateProfileInput
	if err := decode(call, &in); err != nil {
		return tools.Failed{Cause: err}, nil
	}
	if in.Profile == nil {
		return tools.Failed{Cause: errors.New("profile is required")}, nil
	}

	var missing []string
	for _, field := range requiredProfileFields {
		v, ok := in.Profile[field].(string)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		h.logger.Debug("profile incomplete", "call_id", call.ID, "missing", missing)
		return immediate(map[string]any{
			"status":  "invalid",
			"missing": missing,
		})
	}

	return immediate(map[string]any{
		"status":             "valid",
		"next_required_tool": "submit_for_validation",
	})
}
