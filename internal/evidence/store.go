package evidence

import (
	"context"
	"sync"

	"github.com/banshee-data/violation.report/internal/tracking"
)

// Store persists artifacts. Add performs the dedup check and the insert as
// one atomic step; a duplicate key yields (false, nil).
type Store interface {
	Add(ctx context.Context, a Artifact) (bool, error)
	Query(ctx context.Context, f Filter) ([]Artifact, error)
	Exists(ctx context.Context, k Key) (bool, error)
	Get(ctx context.Context, id string) (Artifact, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	byKey map[Key]int
	items []Artifact
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKey: make(map[Key]int)}
}

// Add implements Store.
func (m *MemoryStore) Add(_ context.Context, a Artifact) (bool, error) {
	k := a.Key()
	if a.ID == "" {
		a.ID = k.ID()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byKey[k]; dup {
		return false, nil
	}
	m.byKey[k] = len(m.items)
	m.items = append(m.items, clone(a))
	return true, nil
}

// Query implements Store.
func (m *MemoryStore) Query(_ context.Context, f Filter) ([]Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Artifact, 0, len(m.items))
	for _, a := range m.items {
		if f.Matches(a) {
			out = append(out, clone(a))
		}
	}
	return f.Arrange(out), nil
}

// Exists implements Store.
func (m *MemoryStore) Exists(_ context.Context, k Key) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byKey[k]
	return ok, nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (Artifact, error) {
	k, err := ParseID(id)
	if err != nil {
		return Artifact{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byKey[k]
	if !ok {
		return Artifact{}, ErrNotFound
	}
	return clone(m.items[i]), nil
}

// Len returns the number of stored artifacts.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func clone(a Artifact) Artifact {
	a.Related = append([]tracking.TrackID(nil), a.Related...)
	return a
}
