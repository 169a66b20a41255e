// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu        sync.RWMutex
	events    []LedgerEvent        // in insertion order
	eventIDs  map[string]struct{}  // for duplicate detection
	artifacts map[string]*Artifact // keyed by artifact ID
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		eventIDs:  make(map[string]struct{}),
		artifacts: make(map[string]*Artifact),
	}
}

// SaveEvent appends an event to the ledger.
func (m *MockStore) SaveEvent(ctx context.Context, event *LedgerEvent) error {
	if event.ID == "" {
		return errors.New("event id required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.eventIDs[event.ID]; ok {
		return ErrDuplicateEvent
	}
	m.eventIDs[event.ID] = struct{}{}
	m.events = append(m.events, *event)
	return nil
}

// ListEvents filters the ledger the same way SQLiteStore does.
func (m *MockStore) ListEvents(ctx context.Context, p ListEventsParams) (*ListEventsResult, error) {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 500 {
		p.Limit = 500
	}

	start := 0
	if p.Cursor != "" {
		seq, err := decodeCursor(p.Cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		start = int(seq)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := &ListEventsResult{}
	for i := start; i < len(m.events); i++ {
		e := m.events[i]
		if p.Topic != "" && e.Topic != p.Topic {
			continue
		}
		if p.CallID != "" && (e.CallID == nil || *e.CallID != p.CallID) {
			continue
		}
		if p.Since != nil && e.CreatedAt.Before(*p.Since) {
			continue
		}
		if len(result.Events) == p.Limit {
			result.HasMore = true
			// Mock cursors hold the slice index to resume from.
			result.NextCursor = encodeCursor(int64(i))
			break
		}
		result.Events = append(result.Events, e)
	}
	return result, nil
}

// SaveArtifact stores a copy of the artifact.
func (m *MockStore) SaveArtifact(ctx context.Context, a *Artifact) error {
	if a.ID == "" {
		return errors.New("artifact id required")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	m.artifacts[a.ID] = &cp
	return nil
}

// GetArtifact returns a copy of the stored artifact.
func (m *MockStore) GetArtifact(ctx context.Context, id string) (*Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// ListArtifacts returns artifacts newest first.
func (m *MockStore) ListArtifacts(ctx context.Context, limit int) ([]*Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Artifact, 0, len(m.artifacts))
	for _, a := range m.artifacts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store
var _ Store = (*MockStore)(nil)
