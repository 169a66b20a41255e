// ABOUTME: Artifact batch messenger: folds the artifacts of one upload action into a single model message
// ABOUTME: Owns the open batch and its timeout; everything runs on the Run goroutine

package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/interview-gateway/internal/events"
	"github.com/2389/interview-gateway/internal/state"
)

// DefaultPerDocumentTimeout bounds how long one document may take to extract.
const DefaultPerDocumentTimeout = 2 * time.Minute

// Content types sent to the model on their own instead of being batched.
const (
	ContentTypeGitAnalysis = "application/x-git-repository-analysis"
	contentTypeImagePrefix = "image/"
)

// Config controls batching.
type Config struct {
	PerDocumentTimeout time.Duration
	// SummaryChars bounds the summary shown for non-context documents.
	SummaryChars int
	// ContextPurposes lists artifact purposes that are sent in full.
	ContextPurposes []string
	// IgnoredTargets lists upload targets that are not documents.
	IgnoredTargets []string
	// UploadTools lists the UI tools that show an upload prompt. Only their
	// pending calls are answered with batch content.
	UploadTools []string
}

func (c Config) withDefaults() Config {
	if c.PerDocumentTimeout <= 0 {
		c.PerDocumentTimeout = DefaultPerDocumentTimeout
	}
	if c.SummaryChars <= 0 {
		c.SummaryChars = 600
	}
	if c.ContextPurposes == nil {
		c.ContextPurposes = []string{"writing_sample"}
	}
	if c.IgnoredTargets == nil {
		c.IgnoredTargets = []string{"basics.image"}
	}
	if c.UploadTools == nil {
		c.UploadTools = []string{"get_user_upload"}
	}
	return c
}

// Bus is the part of the event bus the messenger uses.
type Bus interface {
	Emit(p events.Payload)
	Subscribe(ctx context.Context, topics ...events.Topic) (<-chan events.Event, string)
}

// PendingUIReader reports whether a UI tool call is waiting on the user.
type PendingUIReader interface {
	PendingUIToolCall() (state.PendingUIToolCall, bool)
}

type pendingBatch struct {
	expected  int
	collected []events.Artifact
	skipped   int
	startedAt time.Time
	timeout   time.Duration
}

func (b *pendingBatch) done() bool {
	return len(b.collected)+b.skipped >= b.expected
}

// Messenger batches artifacts. Only the Run goroutine touches batch, timer, and generation.
type Messenger struct {
	cfg    Config
	bus    Bus
	state  PendingUIReader
	logger *slog.Logger

	batch      *pendingBatch
	generation uint64
	timer      *time.Timer

	timeouts chan uint64
	stopped  chan struct{}
	ready    chan struct{}
}

// NewMessenger creates a messenger. Pass nil logger for default.
func NewMessenger(cfg Config, bus Bus, st PendingUIReader, logger *slog.Logger) *Messenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Messenger{
		cfg:      cfg.withDefaults(),
		bus:      bus,
		state:    st,
		logger:   logger.With("component", "artifact_messenger"),
		timeouts: make(chan uint64),
		stopped:  make(chan struct{}),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once Run has subscribed to the bus.
func (m *Messenger) Ready() <-chan struct{} {
	return m.ready
}

// Run consumes the artifact topic until ctx is cancelled.
func (m *Messenger) Run(ctx context.Context) error {
	stream, _ := m.bus.Subscribe(ctx, events.TopicArtifact)
	close(m.ready)
	defer close(m.stopped)
	defer m.stopTimer()

	m.logger.Info("artifact messenger started", "per_document_timeout", m.cfg.PerDocumentTimeout)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("artifact messenger stopped")
			return nil
		case gen := <-m.timeouts:
			if m.batch != nil && gen == m.generation {
				m.complete(true)
			}
		case evt, ok := <-stream:
			if !ok {
				return nil
			}
			switch p := evt.Payload.(type) {
			case events.UploadCompleted:
				m.handleUpload(p)
			case events.ArtifactProduced:
				m.handleArtifact(p.Artifact)
			}
		}
	}
}

func (m *Messenger) handleUpload(up events.UploadCompleted) {
	if m.ignored(up.TargetKey) {
		m.logger.Debug("upload for non-document field ignored", "upload_id", up.UploadID, "target", up.TargetKey)
		return
	}

	k := 0
	for _, f := range up.Files {
		if f.Extractable {
			k++
		}
	}
	if k == 0 {
		return
	}

	if m.batch == nil {
		m.batch = &pendingBatch{expected: k, startedAt: time.Now()}
		m.logger.Info("batch opened", "upload_id", up.UploadID, "expected", k)
		m.bus.Emit(events.BatchStarted{Expected: k})
		m.bus.Emit(events.DeveloperMessage{Text: startedNotice(k)})
	} else {
		m.batch.expected += k
		m.logger.Info("upload merged into open batch",
			"upload_id", up.UploadID, "added", k, "expected", m.batch.expected)
		m.bus.Emit(events.BatchStarted{Expected: m.batch.expected, Merged: true})
	}
	m.armTimer()
}

func (m *Messenger) handleArtifact(a events.Artifact) {
	switch {
	case sentAlone(a):
		m.logger.Info("artifact sent individually", "artifact_id", a.ID, "content_type", a.ContentType)
		m.bus.Emit(events.UserMessage{Text: individualMessage(a, m.cfg.SummaryChars), System: true})
		if m.batch != nil {
			m.batch.skipped++
		}

	case strings.TrimSpace(a.ExtractedText) == "":
		m.logger.Warn("artifact has no extracted text", "artifact_id", a.ID, "filename", a.Filename)
		if m.batch != nil {
			m.batch.skipped++
		}

	case m.batch == nil:
		// Late arrival after the batch already closed.
		m.logger.Info("artifact arrived with no open batch", "artifact_id", a.ID, "filename", a.Filename)
		m.bus.Emit(events.UserMessage{Text: consolidatedMessage([]events.Artifact{normalize(a)}, m.cfg), System: true})

	default:
		m.batch.collected = append(m.batch.collected, normalize(a))
		m.logger.Debug("artifact collected", "artifact_id", a.ID,
			"collected", len(m.batch.collected), "skipped", m.batch.skipped, "expected", m.batch.expected)
	}

	if m.batch != nil && m.batch.done() {
		m.complete(false)
	}
}

// complete closes the open batch. Calling it with no open batch is a no-op.
func (m *Messenger) complete(timedOut bool) {
	b := m.batch
	if b == nil {
		return
	}
	m.batch = nil
	m.generation++
	m.stopTimer()

	logger := m.logger.With("expected", b.expected, "collected", len(b.collected),
		"skipped", b.skipped, "elapsed", time.Since(b.startedAt).Round(time.Millisecond))

	closed := events.BatchClosed{
		Expected:  b.expected,
		Collected: len(b.collected),
		Skipped:   b.skipped,
		TimedOut:  timedOut,
	}

	if len(b.collected) == 0 {
		if timedOut {
			logger.Info("batch timed out with nothing collected")
			m.bus.Emit(closed)
			return
		}
		logger.Info("batch finished with no usable text")
		if p, ok := m.pendingUpload(); ok {
			m.bus.Emit(events.UIToolCallCompleted{
				CallID: p.CallID,
				Output: uploadToolOutput("no_content", nil, noContentText),
			})
		}
		m.bus.Emit(events.DeveloperMessage{Text: noContentNotice})
		m.bus.Emit(closed)
		return
	}

	if timedOut {
		logger.Warn("batch timed out, sending what was collected")
	} else {
		logger.Info("batch complete")
	}

	text := consolidatedMessage(b.collected, m.cfg)
	if p, ok := m.pendingUpload(); ok {
		m.bus.Emit(events.UIToolCallCompleted{
			CallID:       p.CallID,
			Output:       uploadToolOutput("uploaded", b.collected, text),
			FallbackText: text,
		})
	} else {
		m.bus.Emit(events.UserMessage{Text: text, System: true})
	}

	m.bus.Emit(events.DeveloperMessage{Text: completedNotice(len(b.collected), timedOut)})
	m.bus.Emit(closed)
}

// armTimer (re)starts the batch timeout at PerDocumentTimeout × expected.
func (m *Messenger) armTimer() {
	m.stopTimer()
	m.generation++
	gen := m.generation
	m.batch.timeout = m.cfg.PerDocumentTimeout * time.Duration(m.batch.expected)

	m.timer = time.AfterFunc(m.batch.timeout, func() {
		select {
		case m.timeouts <- gen:
		case <-m.stopped:
		}
	})
}

func (m *Messenger) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// pendingUpload returns the pending UI tool call when it is an upload prompt.
func (m *Messenger) pendingUpload() (state.PendingUIToolCall, bool) {
	p, ok := m.state.PendingUIToolCall()
	if !ok {
		return p, false
	}
	for _, name := range m.cfg.UploadTools {
		if p.ToolName == name {
			return p, true
		}
	}
	return p, false
}

func (m *Messenger) ignored(target string) bool {
	for _, t := range m.cfg.IgnoredTargets {
		if t == target {
			return true
		}
	}
	return false
}

func sentAlone(a events.Artifact) bool {
	return strings.HasPrefix(a.ContentType, contentTypeImagePrefix) || a.ContentType == ContentTypeGitAnalysis
}

func uploadToolOutput(status string, collected []events.Artifact, text string) json.RawMessage {
	ids := make([]string, 0, len(collected))
	for _, a := range collected {
		ids = append(ids, a.ID)
	}
	out, _ := json.Marshal(map[string]any{
		"status":       status,
		"artifact_ids": ids,
		"message":      text,
	})
	return out
}

const (
	noContentText = "The upload finished, but no text could be extracted from the documents."

	noContentNotice = "Background processing finished, but no text could be extracted from the uploaded " +
		"documents. Do not wait for their content; ask the user about them directly if it matters."
)

func startedNotice(n int) string {
	return fmt.Sprintf("The user uploaded %s. Extraction is running in the background and can take a "+
		"couple of minutes. Continue the interview; the extracted content will arrive in a later message.",
		plural(n, "document"))
}

func completedNotice(n int, timedOut bool) string {
	if timedOut {
		return fmt.Sprintf("Background processing stopped waiting after a timeout; %s arrived. "+
			"Acknowledge what was received and continue.", plural(n, "document"))
	}
	return fmt.Sprintf("Background processing finished for %s. Acknowledge the upload naturally and continue.",
		plural(n, "document"))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
