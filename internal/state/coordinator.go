// ABOUTME: Interview state coordinator: current phase, per-phase tool allow-list, pending UI tool slot
// ABOUTME: All operations are serialized; other components only query or request mutations here

package state

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/2389/interview-gateway/internal/events"
)

// ErrUIToolCallPending is returned when the pending UI tool call slot is already occupied.
var ErrUIToolCallPending = errors.New("ui tool call already pending")

// ErrUnknownPhase indicates a phase name that is not configured.
var ErrUnknownPhase = errors.New("unknown phase")

// ErrFinalPhase indicates there is no phase after the current one.
var ErrFinalPhase = errors.New("already in final phase")

// Phase is one interview phase and the tools the model may call during it.
type Phase struct {
	Name         string
	AllowedTools []string
}

// PendingUIToolCall identifies the single tool call currently waiting on direct user action.
type PendingUIToolCall struct {
	CallID   string
	ToolName string
}

// Publisher is the part of the bus the coordinator needs.
type Publisher interface {
	Emit(p events.Payload)
}

// Coordinator holds the mutable interview state shared by the session's reactors.
type Coordinator struct {
	mu       sync.Mutex
	phases   []Phase
	current  int
	excluded map[string]struct{}
	pending  *PendingUIToolCall

	bus    Publisher
	logger *slog.Logger
}

// NewCoordinator creates a coordinator positioned at the first phase.
func NewCoordinator(phases []Phase, bus Publisher, logger *slog.Logger) (*Coordinator, error) {
	if len(phases) == 0 {
		return nil, errors.New("at least one phase is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		phases:   phases,
		excluded: make(map[string]struct{}),
		bus:      bus,
		logger:   logger.With("component", "state"),
	}, nil
}

// Phase returns the current phase name.
func (c *Coordinator) Phase() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phases[c.current].Name
}

// AllowedTools returns the current phase's allow-list minus excluded tools, sorted.
func (c *Coordinator) AllowedTools() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.phases[c.current].AllowedTools))
	for _, name := range c.phases[c.current].AllowedTools {
		if _, gone := c.excluded[name]; !gone {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// IsToolAllowed reports whether name may be called in the current phase.
func (c *Coordinator) IsToolAllowed(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, gone := c.excluded[name]; gone {
		return false
	}
	for _, allowed := range c.phases[c.current].AllowedTools {
		if allowed == name {
			return true
		}
	}
	return false
}

// ExcludeTool drops name from every phase's allow-list for the rest of the session.
func (c *Coordinator) ExcludeTool(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, gone := c.excluded[name]; gone {
		return
	}
	c.excluded[name] = struct{}{}
	c.logger.Info("tool excluded for session", "tool_name", name)
	c.emit(events.ToolExcluded{Name: name})
}

// PendingUIToolCall returns the occupied slot, if any.
func (c *Coordinator) PendingUIToolCall() (PendingUIToolCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return PendingUIToolCall{}, false
	}
	return *c.pending, true
}

// SetPendingUIToolCall occupies the slot. It never overwrites: an occupied
// slot yields ErrUIToolCallPending.
func (c *Coordinator) SetPendingUIToolCall(p PendingUIToolCall) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		return fmt.Errorf("%w: %s (%s)", ErrUIToolCallPending, c.pending.ToolName, c.pending.CallID)
	}
	c.pending = &p
	c.logger.Debug("pending ui tool call set", "call_id", p.CallID, "tool_name", p.ToolName)
	c.emit(events.PendingUIToolChanged{CallID: p.CallID, ToolName: p.ToolName, Pending: true})
	return nil
}

// ClearPendingUIToolCall empties the slot and returns what was in it.
func (c *Coordinator) ClearPendingUIToolCall() (PendingUIToolCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return PendingUIToolCall{}, false
	}
	p := *c.pending
	c.pending = nil
	c.logger.Debug("pending ui tool call cleared", "call_id", p.CallID, "tool_name", p.ToolName)
	c.emit(events.PendingUIToolChanged{CallID: p.CallID, ToolName: p.ToolName, Pending: false})
	return p, true
}

// AdvancePhase moves to the named phase.
func (c *Coordinator) AdvancePhase(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, p := range c.phases {
		if p.Name == name {
			c.moveLocked(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownPhase, name)
}

// NextPhase moves to the phase after the current one and returns its name.
func (c *Coordinator) NextPhase() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == len(c.phases)-1 {
		return "", ErrFinalPhase
	}
	c.moveLocked(c.current + 1)
	return c.phases[c.current].Name, nil
}

func (c *Coordinator) moveLocked(i int) {
	from := c.phases[c.current].Name
	c.current = i
	to := c.phases[i].Name
	if from == to {
		return
	}
	c.logger.Info("phase changed", "from", from, "to", to)
	c.emit(events.PhaseChanged{From: from, To: to})
}

// emit publishes while mu is held. Bus publishes never block, and publishing
// under the lock keeps state events in the same order as the mutations.
func (c *Coordinator) emit(p events.Payload) {
	if c.bus != nil {
		c.bus.Emit(p)
	}
}
