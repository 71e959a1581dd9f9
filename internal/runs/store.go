package runs

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Store persists finished runs. Writes happen fire-and-forget after a
// session reaches Results; reads back the history for listing and stats.
type Store interface {
	PutRun(ctx context.Context, r Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context, opts ListOpts) ([]Run, error)
	Stats(ctx context.Context) (Stats, error)
}

var ErrNotFound = errors.New("run not found")

type memoryStore struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewInMemoryStore backs the run history with a map, for tests and for
// running without a database.
func NewInMemoryStore() Store {
	return &memoryStore{runs: map[string]Run{}}
}

func (m *memoryStore) PutRun(_ context.Context, r Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID] = r
	return nil
}

func (m *memoryStore) GetRun(_ context.Context, id string) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return r, nil
}

func (m *memoryStore) ListRuns(_ context.Context, opts ListOpts) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		if opts.Mode != "" && string(r.Mode) != opts.Mode {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt > out[j].EndedAt })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Run{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var st Stats
	for _, r := range m.runs {
		st.RunCount++
		st.MeanNote20 += r.Note20
		if r.Note20 > st.BestNote20 {
			st.BestNote20 = r.Note20
		}
	}
	if st.RunCount > 0 {
		st.MeanNote20 /= float64(st.RunCount)
	}
	return st, nil
}
