// ABOUTME: UI tools that wait on the user: get_user_upload, submit_for_validation, ask_user_question
// ABOUTME: Uploads and profile review complete through the pending UI slot; questions use continuations

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/interview-gateway/internal/tools"
)

type uiHandlers struct {
	mu      sync.Mutex
	pending map[string]askUserQuestionInput // continuation ID → question
	logger  *slog.Logger
}

func newUIHandlers(logger *slog.Logger) *uiHandlers {
	return &uiHandlers{
		pending: make(map[string]askUserQuestionInput),
		logger:  logger,
	}
}

type getUserUploadInput struct {
	Title       string   `json:"title"`
	Prompt      string   `json:"prompt"`
	AcceptTypes []string `json:"accept_types,omitempty"`
	TargetKey   string   `json:"target_key,omitempty"`
}

// GetUserUpload shows an upload card. The call stays open until the batch
// messenger completes it with the processed documents.
func (u *uiHandlers) GetUserUpload(ctx context.Context, call tools.Call) (tools.Result, error) {
	var in getUserUploadInput
	if err := decode(call, &in); err != nil {
		return tools.Failed{Cause: err}, nil
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return tools.Failed{Cause: errors.New("prompt is required")}, nil
	}
	u.logger.Info("upload requested", "call_id", call.ID, "target", in.TargetKey)
	return tools.PendingUserAction{}, nil
}

type submitForValidationInput struct {
	Profile map[string]any `json:"profile"`
}

// SubmitForValidation shows the drafted profile for user review.
func (u *uiHandlers) SubmitForValidation(ctx context.Context, call tools.Call) (tools.Result, error) {
	var in submitForValidationInput
	if err := decode(call, &in); err != nil {
		return tools.Failed{Cause: err}, nil
	}
	if len(in.Profile) == 0 {
		return tools.Failed{Cause: errors.New("profile is required")}, nil
	}
	return tools.PendingUserAction{}, nil
}

// askUserQuestionInput is the input schema for ask_user_question
type askUserQuestionInput struct {
	Question    string   `json:"question"`
	Options     []string `json:"options,omitempty"`
	MultiSelect bool     `json:"multi_select,omitempty"`
}

// askUserQuestionOutput is the output schema for ask_user_question
type askUserQuestionOutput struct {
	Answered   bool     `json:"answered"`
	Question   string   `json:"question"`
	Selected   []string `json:"selected,omitempty"`
	CustomText string   `json:"custom_text,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// questionAnswer is what the UI sends back on resume.
type questionAnswer struct {
	Selected   []string `json:"selected,omitempty"`
	CustomText string   `json:"custom_text,omitempty"`
	Dismissed  bool     `json:"dismissed,omitempty"`
}

func (u *uiHandlers) AskUserQuestion(ctx context.Context, call tools.Call) (tools.Result, error) {
	var in askUserQuestionInput
	if err := decode(call, &in); err != nil {
		return tools.Failed{Cause: err}, nil
	}

	if strings.TrimSpace(in.Question) == "" {
		return tools.Failed{Cause: errors.New("question is required")}, nil
	}
	seen := make(map[string]bool)
	for _, opt := range in.Options {
		if seen[opt] {
			return tools.Failed{Cause: fmt.Errorf("duplicate option: %q", opt)}, nil
		}
		seen[opt] = true
	}

	id := uuid.New().String()
	u.mu.Lock()
	u.pending[id] = in
	u.mu.Unlock()

	return tools.Waiting{
		Message:      in.Question,
		Continuation: tools.Continuation{ID: id, ToolName: call.Name},
	}, nil
}

// ResumeQuestion turns the user's answer into the tool output.
func (u *uiHandlers) ResumeQuestion(ctx context.Context, continuationID string, input json.RawMessage) (tools.Result, error) {
	u.mu.Lock()
	q, ok := u.pending[continuationID]
	delete(u.pending, continuationID)
	u.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", tools.ErrNoPendingContinuation, continuationID)
	}

	var ans questionAnswer
	if len(input) > 0 {
		// A bare JSON string is free-text input.
		var text string
		if err := json.Unmarshal(input, &text); err == nil {
			ans.CustomText = text
		} else if err := json.Unmarshal(input, &ans); err != nil {
			return tools.Failed{Cause: fmt.Errorf("invalid answer: %w", err)}, nil
		}
	}

	out := askUserQuestionOutput{Question: q.Question}
	switch {
	case ans.Dismissed:
		out.Reason = "dismissed"
	case len(ans.Selected) == 0 && strings.TrimSpace(ans.CustomText) == "":
		out.Reason = "no_response"
	default:
		if len(q.Options) > 0 {
			valid := make(map[string]bool, len(q.Options))
			for _, o := range q.Options {
				valid[o] = true
			}
			for _, s := range ans.Selected {
				if !valid[s] {
					return tools.Failed{Cause: fmt.Errorf("selected option %q was not offered", s)}, nil
				}
			}
		}
		if !q.MultiSelect && len(ans.Selected) > 1 {
			return tools.Failed{Cause: errors.New("only one option may be selected")}, nil
		}
		out.Answered = true
		out.Selected = ans.Selected
		out.CustomText = ans.CustomText
	}

	return immediate(out)
}
