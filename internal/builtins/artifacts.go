// ABOUTME: Artifact retrieval tools backed by the session store
// ABOUTME: get_artifact returns full text; list_artifacts returns ids and summaries

package builtins

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/interview-gateway/internal/store"
	"github.com/2389/interview-gateway/internal/tools"
)

const maxListedArtifacts = 50

type artifactHandlers struct {
	store store.Store
}

type getArtifactInput struct {
	ArtifactID string `json:"artifact_id"`
}

func (h *artifactHandlers) Get(ctx context.Context, call tools.Call) (tools.Result, error) {
	var in getArtifactInput
	if err := decode(call, &in); err != nil {
		return tools.Failed{Cause: err}, nil
	}
	if in.ArtifactID == "" {
		return tools.Failed{Cause: errors.New("artifact_id is required")}, nil
	}

	a, err := h.store.GetArtifact(ctx, in.ArtifactID)
	if errors.Is(err, store.ErrNotFound) {
		return tools.Failed{Cause: fmt.Errorf("no artifact with id %q", in.ArtifactID)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading artifact: %w", err)
	}

	return immediate(map[string]any{
		"artifact_id":  a.ID,
		"filename":     a.Filename,
		"content_type": a.ContentType,
		"purpose":      a.Purpose,
		"text":         a.ExtractedText,
	})
}

type artifactListing struct {
	ArtifactID  string `json:"artifact_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Purpose     string `json:"purpose,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

func (h *artifactHandlers) List(ctx context.Context, call tools.Call) (tools.Result, error) {
	list, err := h.store.ListArtifacts(ctx, maxListedArtifacts)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}

	out := make([]artifactListing, len(list))
	for i, a := range list {
		out[i] = artifactListing{
			ArtifactID:  a.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Purpose:     a.Purpose,
			Summary:     a.Summary,
		}
	}
	return immediate(map[string]any{"artifacts": out, "count": len(out)})
}
