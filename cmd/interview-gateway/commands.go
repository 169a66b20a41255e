// ABOUTME: JSON-line protocol between the host process and a running session
// ABOUTME: Upstream commands arrive on stdin; downstream events are written to stdout

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/2389/interview-gateway/internal/events"
)

const (
	maxLineBytes     = 16 * 1024 * 1024
	initialLineBytes = 64 * 1024
)

// Session is the part of session.Session the protocol drives.
type Session interface {
	Run(ctx context.Context) error
	WaitReady(ctx context.Context) error
	Subscribe(ctx context.Context, topics ...events.Topic) <-chan events.Event
	RequestToolCall(callID, name string, args json.RawMessage)
	Resume(continuationID string, input json.RawMessage)
	CompleteUpload(up events.UploadCompleted)
	ProduceArtifact(a events.Artifact)
	CompleteUITool(output json.RawMessage)
	AdvancePhase(name string) error
}

var errUnknownCommand = errors.New("unknown command type")

type uploadedFile struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Extractable bool   `json:"extractable"`
}

type upload struct {
	UploadID  string         `json:"upload_id"`
	TargetKey string         `json:"target_key,omitempty"`
	Files     []uploadedFile `json:"files"`
}

type artifact struct {
	ID            string `json:"id"`
	UploadID      string `json:"upload_id,omitempty"`
	Filename      string `json:"filename"`
	ContentType   string `json:"content_type,omitempty"`
	ExtractedText string `json:"extracted_text,omitempty"`
	Size          int64  `json:"size,omitempty"`
	Source        string `json:"source,omitempty"`
	Purpose       string `json:"purpose,omitempty"`
	Summary       string `json:"summary,omitempty"`
}

// command is one upstream line.
type command struct {
	Type           string          `json:"type"`
	CallID         string          `json:"call_id,omitempty"`
	Name           string          `json:"name,omitempty"`
	Arguments      json.RawMessage `json:"arguments,omitempty"`
	ContinuationID string          `json:"continuation_id,omitempty"`
	Input          json.RawMessage `json:"input,omitempty"`
	Upload         *upload         `json:"upload,omitempty"`
	Artifact       *artifact       `json:"artifact,omitempty"`
	Output         json.RawMessage `json:"output,omitempty"`
	Phase          string          `json:"phase,omitempty"`
}

func applyCommand(sess Session, cmd command) error {
	switch cmd.Type {
	case "tool_call":
		if cmd.CallID == "" || cmd.Name == "" {
			return errors.New("tool_call requires call_id and name")
		}
		sess.RequestToolCall(cmd.CallID, cmd.Name, cmd.Arguments)
	case "resume":
		if cmd.ContinuationID == "" {
			return errors.New("resume requires continuation_id")
		}
		sess.Resume(cmd.ContinuationID, cmd.Input)
	case "upload":
		if cmd.Upload == nil {
			return errors.New("upload requires upload")
		}
		up := events.UploadCompleted{UploadID: cmd.Upload.UploadID, TargetKey: cmd.Upload.TargetKey}
		for _, f := range cmd.Upload.Files {
			up.Files = append(up.Files, events.UploadedFile{
				Filename:    f.Filename,
				ContentType: f.ContentType,
				Size:        f.Size,
				Extractable: f.Extractable,
			})
		}
		sess.CompleteUpload(up)
	case "artifact":
		a := cmd.Artifact
		if a == nil || a.ID == "" {
			return errors.New("artifact requires artifact.id")
		}
		sess.ProduceArtifact(events.Artifact{
			ID:            a.ID,
			UploadID:      a.UploadID,
			Filename:      a.Filename,
			ContentType:   a.ContentType,
			ExtractedText: a.ExtractedText,
			Size:          a.Size,
			Source:        a.Source,
			Purpose:       a.Purpose,
			Summary:       a.Summary,
		})
	case "ui_complete":
		sess.CompleteUITool(cmd.Output)
	case "phase":
		if cmd.Phase == "" {
			return errors.New("phase requires phase")
		}
		return sess.AdvancePhase(cmd.Phase)
	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, cmd.Type)
	}
	return nil
}

// readCommands applies each line of in to sess until EOF. Bad lines are
// logged and skipped.
func readCommands(ctx context.Context, in io.Reader, sess Session, logger *slog.Logger) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, initialLineBytes), maxLineBytes)

	line := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var cmd command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			logger.Warn("malformed command", "line", line, "error", err)
			continue
		}
		if err := applyCommand(sess, cmd); err != nil {
			logger.Warn("command rejected", "line", line, "type", cmd.Type, "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading commands: %w", err)
	}
	return nil
}

// downstream is one outgoing line.
type downstream struct {
	Type           string          `json:"type"`
	CallID         string          `json:"call_id,omitempty"`
	ToolName       string          `json:"tool_name,omitempty"`
	Status         string          `json:"status,omitempty"`
	Output         json.RawMessage `json:"output,omitempty"`
	ToolChoice     string          `json:"tool_choice,omitempty"`
	Text           string          `json:"text,omitempty"`
	System         bool            `json:"system,omitempty"`
	ContinuationID string          `json:"continuation_id,omitempty"`
	From           string          `json:"from,omitempty"`
	To             string          `json:"to,omitempty"`
	Expected       int             `json:"expected,omitempty"`
	Collected      int             `json:"collected,omitempty"`
	Skipped        int             `json:"skipped,omitempty"`
	Merged         bool            `json:"merged,omitempty"`
	TimedOut       bool            `json:"timed_out,omitempty"`
}

// encodeEvent maps an event to its outgoing line. ok is false for events the
// host does not see.
func encodeEvent(evt events.Event) (downstream, bool) {
	switch p := evt.Payload.(type) {
	case events.ToolResponse:
		return downstream{
			Type:       "tool_response",
			CallID:     p.CallID,
			ToolName:   p.ToolName,
			Status:     string(p.Status),
			Output:     p.Output,
			ToolChoice: p.ToolChoice,
		}, true
	case events.UserMessage:
		return downstream{Type: "user_message", Text: p.Text, System: p.System}, true
	case events.DeveloperMessage:
		return downstream{Type: "developer_message", Text: p.Text}, true
	case events.ContinuationNeeded:
		return downstream{
			Type:           "continuation_needed",
			CallID:         p.CallID,
			ToolName:       p.ToolName,
			ContinuationID: p.ContinuationID,
			Text:           p.Message,
		}, true
	case events.PhaseChanged:
		return downstream{Type: "phase_changed", From: p.From, To: p.To}, true
	case events.BatchStarted:
		return downstream{Type: "batch_started", Expected: p.Expected, Merged: p.Merged}, true
	case events.BatchClosed:
		return downstream{
			Type:      "batch_closed",
			Expected:  p.Expected,
			Collected: p.Collected,
			Skipped:   p.Skipped,
			TimedOut:  p.TimedOut,
		}, true
	}
	return downstream{}, false
}

// writeDownstream encodes events from ch onto w until ch closes, signalling
// activity after each line.
func writeDownstream(ch <-chan events.Event, w io.Writer, activity chan<- struct{}) error {
	enc := json.NewEncoder(w)
	var firstErr error
	for evt := range ch {
		line, ok := encodeEvent(evt)
		if !ok {
			continue
		}
		if err := enc.Encode(line); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("writing %s: %w", line.Type, err)
		}
		select {
		case activity <- struct{}{}:
		default:
		}
	}
	return firstErr
}
