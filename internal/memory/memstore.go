package memory

import (
	"context"
	"sync"
	"time"

	"github.com/otto-ai/otto/pkg/protocol"
)

// MemStore holds turns in process memory, for tests and dev runs.
// Everything vanishes on restart.
type MemStore struct {
	mu    sync.Mutex
	turns map[string][]protocol.Turn
}

// NewMemStore creates an empty in-process store.
func NewMemStore() *MemStore {
	return &MemStore{turns: make(map[string][]protocol.Turn)}
}

// GetContext returns the caller's most recent turns, oldest first.
func (m *MemStore) GetContext(_ context.Context, callerID string, limit int) ([]protocol.Turn, error) {
	if limit <= 0 {
		limit = defaultContextTurns
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.turns[callerID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]protocol.Turn, len(all))
	copy(out, all)
	return out, nil
}

// Append records one turn for the caller.
func (m *MemStore) Append(_ context.Context, callerID string, turn protocol.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[callerID] = append(m.turns[callerID], turn)
	return nil
}

// Close is a no-op.
func (m *MemStore) Close() error { return nil }

var _ Store = (*MemStore)(nil)
