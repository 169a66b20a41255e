// ABOUTME: Persistence reactor that writes every bus event to the session ledger
// ABOUTME: Produced artifacts are additionally stored so tools can fetch their full text later

package recorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/2389/interview-gateway/internal/events"
	"github.com/2389/interview-gateway/internal/store"
)

// saveTimeout bounds a single write so a slow disk cannot stall the bus.
const saveTimeout = 5 * time.Second

// Subscriber is the part of the event bus the recorder uses.
type Subscriber interface {
	Subscribe(ctx context.Context, topics ...events.Topic) (<-chan events.Event, string)
}

// Recorder persists bus traffic. It never publishes.
type Recorder struct {
	bus    Subscriber
	store  store.Store
	logger *slog.Logger
	ready  chan struct{}
}

// New creates a Recorder. Pass nil logger for default.
func New(bus Subscriber, st store.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		bus:    bus,
		store:  st,
		logger: logger.With("component", "recorder"),
		ready:  make(chan struct{}),
	}
}

// Ready is closed once Run has subscribed to the bus.
func (r *Recorder) Ready() <-chan struct{} {
	return r.ready
}

// Run records events until ctx is cancelled or the bus closes.
func (r *Recorder) Run(ctx context.Context) error {
	stream, _ := r.bus.Subscribe(ctx, events.AllTopics...)
	close(r.ready)

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-stream:
			if !ok {
				return nil
			}
			r.record(evt)
		}
	}
}

func (r *Recorder) record(evt events.Event) {
	// Writes use their own context so an event already taken off the bus is
	// still persisted while the session shuts down.
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if p, ok := evt.Payload.(events.ArtifactProduced); ok {
		r.saveArtifact(ctx, evt, p.Artifact)
	}

	entry := ledgerEntry(evt)
	if err := r.store.SaveEvent(ctx, entry); err != nil {
		r.logger.Error("failed to save event",
			"error", err,
			"event_id", evt.ID,
			"topic", evt.Topic,
			"kind", entry.Kind)
		return
	}
	r.logger.Debug("event saved", "event_id", evt.ID, "topic", evt.Topic, "kind", entry.Kind)
}

func (r *Recorder) saveArtifact(ctx context.Context, evt events.Event, a events.Artifact) {
	rec := &store.Artifact{
		ID:            a.ID,
		UploadID:      a.UploadID,
		Filename:      a.Filename,
		ContentType:   a.ContentType,
		Purpose:       a.Purpose,
		ExtractedText: a.ExtractedText,
		Summary:       a.Summary,
		Size:          a.Size,
		Source:        a.Source,
		CreatedAt:     evt.At,
	}
	if err := r.store.SaveArtifact(ctx, rec); err != nil {
		r.logger.Error("failed to save artifact", "error", err, "artifact_id", a.ID)
	}
}

// ledgerEntry flattens an event into a ledger row.
func ledgerEntry(evt events.Event) *store.LedgerEvent {
	entry := &store.LedgerEvent{
		ID:        evt.ID,
		Topic:     string(evt.Topic),
		CreatedAt: evt.At,
	}

	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		payload = []byte("null")
	}
	entry.Payload = payload

	var callID, text string
	switch p := evt.Payload.(type) {
	case events.ToolCallRequested:
		entry.Kind, callID = "tool_call_requested", p.CallID
	case events.ContinuationResumed:
		entry.Kind = "continuation_resumed"
	case events.ContinuationNeeded:
		entry.Kind, callID, text = "continuation_needed", p.CallID, p.Message
	case events.UIToolCallCompleted:
		entry.Kind, callID = "ui_tool_call_completed", p.CallID
	case events.ToolResponse:
		entry.Kind, callID = "tool_response", p.CallID
	case events.UserMessage:
		entry.Kind, text = "user_message", p.Text
	case events.DeveloperMessage:
		entry.Kind, text = "developer_message", p.Text
	case events.UploadCompleted:
		entry.Kind = "upload_completed"
	case events.ArtifactProduced:
		entry.Kind = "artifact_produced"
	case events.BatchStarted:
		entry.Kind = "batch_started"
	case events.BatchClosed:
		entry.Kind = "batch_closed"
	case events.PhaseChanged:
		entry.Kind, text = "phase_changed", p.From+" -> "+p.To
	case events.ToolExcluded:
		entry.Kind, text = "tool_excluded", p.Name
	case events.PendingUIToolChanged:
		entry.Kind, callID = "pending_ui_tool_changed", p.CallID
	case events.ObjectiveUpdated:
		entry.Kind, text = "objective_updated", p.ObjectiveID+": "+p.Status
	case events.TimelineUpdated:
		entry.Kind, text = "timeline_updated", p.CardID+": "+p.Action
	default:
		entry.Kind = "unknown"
	}

	if callID != "" {
		entry.CallID = &callID
	}
	if text != "" {
		entry.Text = &text
	}
	return entry
}
