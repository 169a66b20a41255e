// ABOUTME: Wires the event bus, state, tool coordinator, batch messenger, and recorder into one interview session
// ABOUTME: Run starts every reactor in an errgroup; entry points publish upstream events onto the bus

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/interview-gateway/internal/artifacts"
	"github.com/2389/interview-gateway/internal/builtins"
	"github.com/2389/interview-gateway/internal/config"
	"github.com/2389/interview-gateway/internal/dedupe"
	"github.com/2389/interview-gateway/internal/events"
	"github.com/2389/interview-gateway/internal/recorder"
	"github.com/2389/interview-gateway/internal/state"
	"github.com/2389/interview-gateway/internal/store"
	"github.com/2389/interview-gateway/internal/tools"
)

// Options configure a session.
type Options struct {
	Phases    []state.Phase
	Artifacts artifacts.Config
	DedupeTTL time.Duration
	DedupeMax int
	Logger    *slog.Logger
}

// OptionsFromConfig translates the file configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	phases := make([]state.Phase, len(cfg.Phases))
	for i, p := range cfg.Phases {
		phases[i] = state.Phase{Name: p.Name, AllowedTools: p.AllowedTools}
	}
	return Options{
		Phases: phases,
		Artifacts: artifacts.Config{
			PerDocumentTimeout: cfg.Artifacts.PerDocumentTimeout,
			SummaryChars:       cfg.Artifacts.SummaryChars,
			ContextPurposes:    cfg.Artifacts.InterviewContextPurposes,
			IgnoredTargets:     cfg.Artifacts.IgnoredTargets,
		},
		DedupeTTL: cfg.Tools.DedupeTTL,
		DedupeMax: cfg.Tools.DedupeMax,
	}
}

type reactor interface {
	Run(ctx context.Context) error
	Ready() <-chan struct{}
}

// Session is one interview conversation.
type Session struct {
	bus         *events.Bus
	state       *state.Coordinator
	registry    *tools.Registry
	coordinator *tools.Coordinator
	messenger   *artifacts.Messenger
	recorder    *recorder.Recorder
	logger      *slog.Logger

	started chan struct{}
}

// New builds a session on top of st. The session does not own st.
func New(opts Options, st store.Store) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if st == nil {
		return nil, errors.New("store is required")
	}

	bus := events.NewBus(logger)

	sc, err := state.NewCoordinator(opts.Phases, bus, logger)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("creating state coordinator: %w", err)
	}

	registry := tools.NewRegistry(logger)
	if err := builtins.RegisterAll(registry, builtins.Deps{State: sc, Store: st, Bus: bus, Logger: logger}); err != nil {
		bus.Close()
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	s := &Session{
		bus:      bus,
		state:    sc,
		registry: registry,
		coordinator: tools.NewCoordinator(tools.CoordinatorConfig{
			Executor: registry,
			State:    sc,
			Bus:      bus,
			Seen:     dedupe.New(opts.DedupeTTL, opts.DedupeMax),
			Logger:   logger,
		}),
		messenger: artifacts.NewMessenger(opts.Artifacts, bus, sc, logger),
		recorder:  recorder.New(bus, st, logger),
		logger:    logger.With("component", "session"),
		started:   make(chan struct{}),
	}
	return s, nil
}

func (s *Session) reactors() []reactor {
	return []reactor{s.recorder, s.coordinator, s.messenger}
}

// Run starts every reactor and blocks until ctx is cancelled or one fails.
// Call it once.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range s.reactors() {
		g.Go(func() error { return r.Run(ctx) })
	}
	close(s.started)

	s.logger.Info("session running", "phase", s.state.Phase())
	err := g.Wait()
	s.logger.Info("session stopped")
	return err
}

// WaitReady blocks until every reactor is subscribed to the bus. Events
// published after WaitReady returns are seen by all of them.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.started:
	case <-ctx.Done():
		return ctx.Err()
	}
	for _, r := range s.reactors() {
		select {
		case <-r.Ready():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close releases the bus. Subscribers see their streams closed.
func (s *Session) Close() {
	s.bus.Close()
}

// Subscribe observes session events, typically the llm topic for the
// downstream model channel.
func (s *Session) Subscribe(ctx context.Context, topics ...events.Topic) <-chan events.Event {
	ch, _ := s.bus.Subscribe(ctx, topics...)
	return ch
}

// State exposes the interview state for queries.
func (s *Session) State() *state.Coordinator {
	return s.state
}

// Tools returns the registered tool names.
func (s *Session) Tools() []string {
	return s.registry.Names()
}

// RequestToolCall delivers a tool call parsed from a model response.
func (s *Session) RequestToolCall(callID, name string, args json.RawMessage) {
	s.bus.Emit(events.ToolCallRequested{CallID: callID, Name: name, Arguments: args})
}

// Resume delivers user input for a paused tool call.
func (s *Session) Resume(continuationID string, input json.RawMessage) {
	s.bus.Emit(events.ContinuationResumed{ContinuationID: continuationID, Input: input})
}

// CompleteUpload reports a finished upload action.
func (s *Session) CompleteUpload(up events.UploadCompleted) {
	s.bus.Emit(up)
}

// ProduceArtifact reports an artifact from the extraction pipeline.
func (s *Session) ProduceArtifact(a events.Artifact) {
	s.bus.Emit(events.ArtifactProduced{Artifact: a})
}

// CompleteUITool answers the pending UI tool call with output from the UI.
func (s *Session) CompleteUITool(output json.RawMessage) {
	s.bus.Emit(events.UIToolCallCompleted{Output: output})
}

// AdvancePhase moves the interview to the named phase.
func (s *Session) AdvancePhase(name string) error {
	return s.state.AdvancePhase(name)
}
