// ABOUTME: Tests for the artifact batch messenger
// ABOUTME: Covers accounting closure, merge and timer restart, skips, timeouts, upload turn reduction, idempotent completion

package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/interview-gateway/internal/events"
	"github.com/2389/interview-gateway/internal/state"
)

type fakePending struct {
	mu sync.Mutex
	p  *state.PendingUIToolCall
}

func (f *fakePending) PendingUIToolCall() (state.PendingUIToolCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.p == nil {
		return state.PendingUIToolCall{}, false
	}
	return *f.p, true
}

func (f *fakePending) set(p *state.PendingUIToolCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.p = p
}

type messengerHarness struct {
	bus     *events.Bus
	pending *fakePending
	m       *Messenger
	out     <-chan events.Event // llm, processing, and tool topics
}

func startMessenger(t *testing.T, cfg Config) *messengerHarness {
	t.Helper()
	bus := events.NewBus(nil)
	t.Cleanup(bus.Close)

	pending := &fakePending{}
	m := NewMessenger(cfg, bus, pending, nil)
	out, _ := bus.Subscribe(t.Context(), events.TopicLLM, events.TopicProcessing, events.TopicTool)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		_ = m.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	<-m.Ready()

	return &messengerHarness{bus: bus, pending: pending, m: m, out: out}
}

func (h *messengerHarness) upload(files ...string) {
	up := events.UploadCompleted{UploadID: "upload-1"}
	for _, f := range files {
		up.Files = append(up.Files, events.UploadedFile{Filename: f, ContentType: "application/pdf", Extractable: true})
	}
	h.bus.Emit(up)
}

func (h *messengerHarness) artifact(id, filename, contentType, text string) {
	h.bus.Emit(events.ArtifactProduced{Artifact: events.Artifact{
		ID:            id,
		Filename:      filename,
		ContentType:   contentType,
		ExtractedText: text,
	}})
}

// collect reads events until a BatchClosed arrives.
func (h *messengerHarness) collectUntilClosed(t *testing.T) ([]events.Payload, events.BatchClosed) {
	t.Helper()
	var seen []events.Payload
	for {
		select {
		case evt := <-h.out:
			if closed, ok := evt.Payload.(events.BatchClosed); ok {
				return seen, closed
			}
			seen = append(seen, evt.Payload)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for BatchClosed; saw %d events", len(seen))
		}
	}
}

func (h *messengerHarness) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case evt := <-h.out:
		t.Fatalf("unexpected event %T", evt.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func userMessages(payloads []events.Payload) []events.UserMessage {
	var out []events.UserMessage
	for _, p := range payloads {
		if m, ok := p.(events.UserMessage); ok {
			out = append(out, m)
		}
	}
	return out
}

func TestMessenger_TwoDocumentsOneMessage(t *testing.T) {
	h := startMessenger(t, Config{})

	h.upload("resume.pdf", "cover.txt")
	h.artifact("a1", "resume.pdf", "application/pdf", "Jane Doe. Staff engineer with ten years of distributed systems work.")
	h.artifact("a2", "cover.txt", "text/plain", "Dear hiring manager, I am excited to apply.")

	seen, closed := h.collectUntilClosed(t)

	msgs := userMessages(seen)
	require.Len(t, msgs, 1, "exactly one consolidated message and no per-file messages")
	assert.True(t, msgs[0].System)
	assert.Contains(t, msgs[0].Text, "resume.pdf")
	assert.Contains(t, msgs[0].Text, "cover.txt")

	assert.Equal(t, events.BatchClosed{Expected: 2, Collected: 2}, closed)

	require.IsType(t, events.BatchStarted{}, seen[0])
	assert.Equal(t, 2, seen[0].(events.BatchStarted).Expected)
	assert.IsType(t, events.DeveloperMessage{}, seen[1], "model is told processing started")
	assert.IsType(t, events.DeveloperMessage{}, seen[len(seen)-1], "model is told processing finished")
}

func TestMessenger_MergeGrowsOpenBatch(t *testing.T) {
	h := startMessenger(t, Config{})

	h.upload("a.pdf", "b.pdf")
	h.artifact("a1", "a.pdf", "application/pdf", "first document text")
	h.upload("c.pdf")
	h.artifact("a2", "b.pdf", "application/pdf", "second document text")
	h.artifact("a3", "c.pdf", "application/pdf", "third document text")

	seen, closed := h.collectUntilClosed(t)

	var starts []events.BatchStarted
	for _, p := range seen {
		if s, ok := p.(events.BatchStarted); ok {
			starts = append(starts, s)
		}
	}
	assert.Equal(t, []events.BatchStarted{{Expected: 2}, {Expected: 3, Merged: true}}, starts)
	assert.Equal(t, events.BatchClosed{Expected: 3, Collected: 3}, closed)

	msgs := userMessages(seen)
	require.Len(t, msgs, 1)
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		assert.Contains(t, msgs[0].Text, name)
	}
}

func TestMessenger_SkipsStillCloseBatch(t *testing.T) {
	h := startMessenger(t, Config{})

	h.upload("resume.pdf", "photo.png", "scan.pdf", "repo")
	h.artifact("a1", "photo.png", "image/png", "")
	h.artifact("a2", "scan.pdf", "application/pdf", "   ")
	h.artifact("a3", "repo", ContentTypeGitAnalysis, "Go services, strong test culture.")
	h.artifact("a4", "resume.pdf", "application/pdf", "Experienced engineer.")

	seen, closed := h.collectUntilClosed(t)
	assert.Equal(t, events.BatchClosed{Expected: 4, Collected: 1, Skipped: 3}, closed)

	msgs := userMessages(seen)
	require.Len(t, msgs, 3, "image and repo analysis go alone, then one consolidated message")
	assert.Contains(t, msgs[0].Text, "photo.png")
	assert.Contains(t, msgs[1].Text, "Repository analysis")
	assert.Contains(t, msgs[2].Text, "resume.pdf")
	assert.NotContains(t, msgs[2].Text, "scan.pdf", "skipped artifacts are not in the consolidated message")
	assert.NotContains(t, msgs[2].Text, "photo.png")
}

func TestMessenger_AllSkippedSendsNoConsolidatedMessage(t *testing.T) {
	h := startMessenger(t, Config{})

	h.upload("empty.pdf")
	h.artifact("a1", "empty.pdf", "application/pdf", "")

	seen, closed := h.collectUntilClosed(t)
	assert.Empty(t, userMessages(seen))
	assert.Equal(t, events.BatchClosed{Expected: 1, Skipped: 1}, closed)

	var notes []string
	for _, p := range seen {
		if d, ok := p.(events.DeveloperMessage); ok {
			notes = append(notes, d.Text)
		}
	}
	require.Len(t, notes, 2, "started and finished notices")
	assert.Contains(t, notes[1], "no text could be extracted")
}

func TestMessenger_AllSkippedAnswersPendingUpload(t *testing.T) {
	h := startMessenger(t, Config{})
	h.pending.set(&state.PendingUIToolCall{CallID: "up-1", ToolName: "get_user_upload"})

	h.upload("empty.pdf")
	h.artifact("a1", "empty.pdf", "application/pdf", "")

	seen, _ := h.collectUntilClosed(t)

	var completion *events.UIToolCallCompleted
	for _, p := range seen {
		if c, ok := p.(events.UIToolCallCompleted); ok {
			completion = &c
		}
	}
	require.NotNil(t, completion, "the upload prompt is not left open")
	assert.Equal(t, "up-1", completion.CallID)
	assert.JSONEq(t, `{
		"status": "no_content",
		"artifact_ids": [],
		"message": "The upload finished, but no text could be extracted from the documents."
	}`, string(completion.Output))
}

func TestMessenger_NonUploadPendingCallIsLeftAlone(t *testing.T) {
	h := startMessenger(t, Config{})
	h.pending.set(&state.PendingUIToolCall{CallID: "v1", ToolName: "submit_for_validation"})

	h.upload("resume.pdf")
	h.artifact("a1", "resume.pdf", "application/pdf", "Resume text.")

	seen, _ := h.collectUntilClosed(t)
	for _, p := range seen {
		_, isCompletion := p.(events.UIToolCallCompleted)
		assert.False(t, isCompletion, "a profile review is not answered with upload content")
	}
	msgs := userMessages(seen)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].System)
	assert.Contains(t, msgs[0].Text, "resume.pdf")
}

func TestMessenger_MergeRestartsTimeout(t *testing.T) {
	const perDoc = 100 * time.Millisecond
	h := startMessenger(t, Config{PerDocumentTimeout: perDoc})

	h.upload("a.pdf")
	require.Equal(t, events.BatchStarted{Expected: 1}, (<-h.out).Payload)

	// Merge before the first deadline; the batch now waits perDoc × 2 from here.
	time.Sleep(30 * time.Millisecond)
	mergedAt := time.Now()
	h.upload("b.pdf")

	_, closed := h.collectUntilClosed(t)
	assert.GreaterOrEqual(t, time.Since(mergedAt), 2*perDoc, "the first timer must not close the merged batch")
	assert.Equal(t, events.BatchClosed{Expected: 2, TimedOut: true}, closed)
}

func TestMessenger_TimeoutSendsPartialBatch(t *testing.T) {
	h := startMessenger(t, Config{PerDocumentTimeout: 40 * time.Millisecond})

	h.upload("resume.pdf", "slow.pdf")
	h.artifact("a1", "resume.pdf", "application/pdf", "Only this one finished.")

	seen, closed := h.collectUntilClosed(t)
	assert.Equal(t, events.BatchClosed{Expected: 2, Collected: 1, TimedOut: true}, closed)

	msgs := userMessages(seen)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "resume.pdf")
	assert.NotContains(t, msgs[0].Text, "slow.pdf")

	// Batch state is cleared: a new upload opens a fresh batch.
	h.upload("next.pdf")
	started := <-h.out
	assert.Equal(t, events.BatchStarted{Expected: 1}, started.Payload)
}

func TestMessenger_EmptyTimeoutOnlyClosesBatch(t *testing.T) {
	h := startMessenger(t, Config{PerDocumentTimeout: 20 * time.Millisecond})

	h.upload("never.pdf")
	seen, closed := h.collectUntilClosed(t)

	assert.True(t, closed.TimedOut)
	assert.Equal(t, 0, closed.Collected)
	assert.Empty(t, userMessages(seen))
	for _, p := range seen {
		if d, ok := p.(events.DeveloperMessage); ok {
			assert.NotContains(t, d.Text, "finished")
		}
	}
}

func TestMessenger_CompletesPendingUIToolCall(t *testing.T) {
	h := startMessenger(t, Config{})
	h.pending.set(&state.PendingUIToolCall{CallID: "call-7", ToolName: "get_user_upload"})

	h.upload("resume.pdf")
	h.artifact("a1", "resume.pdf", "application/pdf", "Resume text.")

	seen, _ := h.collectUntilClosed(t)
	assert.Empty(t, userMessages(seen), "content goes through the pending tool call, not a new user message")

	var completion *events.UIToolCallCompleted
	for _, p := range seen {
		if c, ok := p.(events.UIToolCallCompleted); ok {
			completion = &c
		}
	}
	require.NotNil(t, completion)
	assert.Equal(t, "call-7", completion.CallID)
	assert.Contains(t, completion.FallbackText, "resume.pdf")

	var out struct {
		Status      string   `json:"status"`
		ArtifactIDs []string `json:"artifact_ids"`
	}
	require.NoError(t, json.Unmarshal(completion.Output, &out))
	assert.Equal(t, "uploaded", out.Status)
	assert.Equal(t, []string{"a1"}, out.ArtifactIDs)
}

func TestMessenger_IgnoresNonDocumentTarget(t *testing.T) {
	h := startMessenger(t, Config{})

	h.bus.Emit(events.UploadCompleted{
		UploadID:  "photo",
		TargetKey: "basics.image",
		Files:     []events.UploadedFile{{Filename: "me.jpg", ContentType: "image/jpeg", Extractable: true}},
	})
	h.assertQuiet(t)
}

func TestMessenger_LateArtifactAfterTimeoutIsSentAlone(t *testing.T) {
	h := startMessenger(t, Config{PerDocumentTimeout: 20 * time.Millisecond})

	h.upload("slow.pdf")
	_, closed := h.collectUntilClosed(t)
	require.True(t, closed.TimedOut)

	h.artifact("a1", "slow.pdf", "application/pdf", "Finally done.")
	evt := <-h.out
	msg, ok := evt.Payload.(events.UserMessage)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "slow.pdf")
}

func TestMessenger_AccountingClosureUnderShuffledOrder(t *testing.T) {
	const n = 6
	h := startMessenger(t, Config{})

	files := make([]string, n)
	for i := range files {
		files[i] = fmt.Sprintf("doc-%d.pdf", i)
	}
	h.upload(files...)

	// Alternate collected and skipped, in reverse order.
	for i := n - 1; i >= 0; i-- {
		text := ""
		if i%2 == 0 {
			text = "content of " + files[i]
		}
		h.artifact(fmt.Sprintf("a%d", i), files[i], "application/pdf", text)
	}

	seen, closed := h.collectUntilClosed(t)
	assert.Equal(t, events.BatchClosed{Expected: n, Collected: n / 2, Skipped: n / 2}, closed)

	msgs := userMessages(seen)
	require.Len(t, msgs, 1)
	for i, f := range files {
		assert.Equal(t, i%2 == 0, strings.Contains(msgs[0].Text, f), f)
	}
	h.assertQuiet(t)
}

func TestMessenger_CompleteIsIdempotent(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()
	out, _ := bus.Subscribe(t.Context(), events.TopicProcessing)

	m := NewMessenger(Config{}, bus, &fakePending{}, nil)
	m.batch = &pendingBatch{expected: 1, collected: []events.Artifact{{ID: "a1", Filename: "x.pdf", ExtractedText: "x"}}}

	m.complete(false)
	m.complete(true)

	evt := <-out
	assert.IsType(t, events.BatchClosed{}, evt.Payload)
	select {
	case extra := <-out:
		t.Fatalf("second completion published %T", extra.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}
