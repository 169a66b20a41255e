// ABOUTME: Store interface and data types for interview session persistence
// ABOUTME: Defines LedgerEvent and Artifact records and the Store interface for database operations

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateEvent is returned when an event with the same ID was already saved
var ErrDuplicateEvent = errors.New("event already exists")

// LedgerEvent is one bus event as recorded in the session ledger.
type LedgerEvent struct {
	ID        string
	Topic     string          // bus topic, e.g. "tool", "llm"
	Kind      string          // payload kind, e.g. "tool_response", "user_message"
	CallID    *string         // optional: tool call the event belongs to
	Text      *string         // optional human-readable text
	Payload   json.RawMessage // full payload as JSON
	CreatedAt time.Time
}

// ListEventsParams filters ledger queries.
type ListEventsParams struct {
	Topic  string     // Optional: only events on this topic
	CallID string     // Optional: only events for this tool call
	Since  *time.Time // Optional: only events at or after this time
	Limit  int        // 1-500, defaults to 50
	Cursor string     // Opaque cursor from a previous response
}

// ListEventsResult is one page of ledger events, oldest first.
type ListEventsResult struct {
	Events     []LedgerEvent
	NextCursor string
	HasMore    bool
}

// Artifact is a persisted extraction result.
type Artifact struct {
	ID            string
	UploadID      string
	Filename      string
	ContentType   string
	Purpose       string
	ExtractedText string
	Summary       string
	Size          int64
	Source        string
	CreatedAt     time.Time
}

// Store defines the interface for session persistence
type Store interface {
	// Ledger events
	SaveEvent(ctx context.Context, event *LedgerEvent) error
	ListEvents(ctx context.Context, params ListEventsParams) (*ListEventsResult, error)

	// Artifacts
	SaveArtifact(ctx context.Context, artifact *Artifact) error
	GetArtifact(ctx context.Context, id string) (*Artifact, error)
	ListArtifacts(ctx context.Context, limit int) ([]*Artifact, error)

	// Close releases any resources held by the store
	Close() error
}
