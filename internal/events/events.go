// ABOUTME: Event envelope, topics, and the sealed payload union carried on the bus
// ABOUTME: Each payload type names its own topic so it can never be published on the wrong one

package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topic is a named partition of the bus. Subscribers choose which topics to observe.
type Topic string

const (
	TopicArtifact   Topic = "artifact"
	TopicTool       Topic = "tool"
	TopicLLM        Topic = "llm"
	TopicPhase      Topic = "phase"
	TopicObjective  Topic = "objective"
	TopicState      Topic = "state"
	TopicTimeline   Topic = "timeline"
	TopicProcessing Topic = "processing"
)

// AllTopics lists every topic, for subscribers that observe the whole bus.
var AllTopics = []Topic{
	TopicArtifact, TopicTool, TopicLLM, TopicPhase,
	TopicObjective, TopicState, TopicTimeline, TopicProcessing,
}

// Event is an immutable envelope around a single payload.
type Event struct {
	ID      string
	Topic   Topic
	At      time.Time
	Payload Payload
}

// Payload is implemented by every payload variant in this package.
// The unexported method keeps the set closed.
type Payload interface {
	topic() Topic
}

// New wraps a payload in an envelope with a fresh ID and timestamp.
func New(p Payload) Event {
	return Event{
		ID:      uuid.New().String(),
		Topic:   p.topic(),
		At:      time.Now().UTC(),
		Payload: p,
	}
}

// ToolStatus reports how a tool call ended from the model's point of view.
type ToolStatus string

const (
	ToolStatusCompleted  ToolStatus = "completed"
	ToolStatusIncomplete ToolStatus = "incomplete"
)

// --- tool topic ---

// ToolCallRequested carries a tool call parsed from a model response.
type ToolCallRequested struct {
	CallID    string
	Name      string
	Arguments json.RawMessage
}

// ContinuationResumed carries user input for a tool call that is waiting on it.
type ContinuationResumed struct {
	ContinuationID string
	Input          json.RawMessage
}

// ContinuationNeeded asks the UI to collect input for a paused tool call.
type ContinuationNeeded struct {
	CallID         string
	ContinuationID string
	ToolName       string
	Message        string
}

// UIToolCallCompleted finishes the pending UI tool call with output.
// CallID, when set, must match the pending call. FallbackText is sent as a
// system-generated user message if no UI tool call is pending anymore.
type UIToolCallCompleted struct {
	CallID       string
	Output       json.RawMessage
	FallbackText string
}

func (ToolCallRequested) topic() Topic   { return TopicTool }
func (ContinuationResumed) topic() Topic { return TopicTool }
func (ContinuationNeeded) topic() Topic  { return TopicTool }
func (UIToolCallCompleted) topic() Topic { return TopicTool }

// --- llm topic: everything the core sends downstream to the model ---

// ToolResponse answers a tool call. ToolChoice forces the next tool when set.
type ToolResponse struct {
	CallID     string
	ToolName   string
	Output     json.RawMessage
	Status     ToolStatus
	ToolChoice string
}

// UserMessage is a user-role message. System marks text the app wrote on the user's behalf.
type UserMessage struct {
	Text   string
	System bool
}

// DeveloperMessage is a developer-role status note for the model.
type DeveloperMessage struct {
	Text string
}

func (ToolResponse) topic() Topic     { return TopicLLM }
func (UserMessage) topic() Topic      { return TopicLLM }
func (DeveloperMessage) topic() Topic { return TopicLLM }

// --- artifact topic ---

// UploadedFile describes one file in an upload action.
// Extractable is set by the upload pipeline when it will emit an ArtifactProduced for the file.
type UploadedFile struct {
	Filename    string
	ContentType string
	Size        int64
	Extractable bool
}

// UploadCompleted reports that the user finished an upload action.
// TargetKey names the field the upload was for. Empty means a general document upload.
type UploadCompleted struct {
	UploadID  string
	TargetKey string
	Files     []UploadedFile
}

// Artifact is one processed upload as produced by the extraction pipeline.
type Artifact struct {
	ID            string
	UploadID      string
	Filename      string
	ContentType   string
	ExtractedText string
	Size          int64
	Source        string
	Purpose       string
	Summary       string
}

// ArtifactProduced reports a finished artifact.
type ArtifactProduced struct {
	Artifact Artifact
}

func (UploadCompleted) topic() Topic  { return TopicArtifact }
func (ArtifactProduced) topic() Topic { return TopicArtifact }

// --- processing topic ---

// BatchStarted is published when a batch opens or grows through a merge.
type BatchStarted struct {
	Expected int
	Merged   bool
}

// BatchClosed is published whenever a batch is destroyed, including empty timeouts.
type BatchClosed struct {
	Expected  int
	Collected int
	Skipped   int
	TimedOut  bool
}

func (BatchStarted) topic() Topic { return TopicProcessing }
func (BatchClosed) topic() Topic  { return TopicProcessing }

// --- phase, state, objective, timeline topics ---

// PhaseChanged reports an interview phase transition.
type PhaseChanged struct {
	From string
	To   string
}

// ToolExcluded reports that a tool was removed from the allow-list for the session.
type ToolExcluded struct {
	Name string
}

// PendingUIToolChanged reports occupancy changes of the pending UI tool call slot.
type PendingUIToolChanged struct {
	CallID   string
	ToolName string
	Pending  bool
}

// ObjectiveUpdated reports progress on an interview objective.
type ObjectiveUpdated struct {
	ObjectiveID string
	Status      string
	Notes       string
}

// TimelineUpdated reports a change to the candidate's timeline.
type TimelineUpdated struct {
	CardID string
	Action string
}

func (PhaseChanged) topic() Topic         { return TopicPhase }
func (ToolExcluded) topic() Topic         { return TopicState }
func (PendingUIToolChanged) topic() Topic { return TopicState }
func (ObjectiveUpdated) topic() Topic     { return TopicObjective }
func (TimelineUpdated) topic() Topic      { return TopicTimeline }
