// Package store persists the journal of finished workflow runs.
//
// The journal records this client's own outcomes. It is never read back as
// ledger state.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/alfredjeanlab/chainreg/internal/model"
)

// DefaultListLimit caps ListRuns when the caller passes no limit.
const DefaultListLimit = 50

// Store defines the persistence interface for the run journal.
type Store interface {
	// RecordRun inserts r, replacing any earlier record with the same ID.
	RecordRun(ctx context.Context, r *model.RunRecord) error
	// ListRuns returns the most recently started runs first.
	ListRuns(ctx context.Context, limit int) ([]*model.RunRecord, error)

	// Lifecycle
	Close() error
}

// Memory is an in-process Store used when no database is configured.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]*model.RunRecord
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory journal.
func NewMemory() *Memory {
	return &Memory{runs: make(map[string]*model.RunRecord)}
}

func (m *Memory) RecordRun(_ context.Context, r *model.RunRecord) error {
	cp := *r
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID] = &cp
	return nil
}

func (m *Memory) ListRuns(_ context.Context, limit int) ([]*model.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.RLock()
	out := make([]*model.RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		cp := *r
		out = append(out, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
