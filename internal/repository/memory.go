package repository

import (
	"context"
	"sync"
)

type memWindow struct {
	mu     sync.Mutex
	values []int64
	index  map[int64]struct{}
}

func (w *memWindow) snapshot() []int64 {
	out := make([]int64, len(w.values))
	copy(out, w.values)
	return out
}

type memoryStore struct {
	capacity int
	// populated once in NewMemoryStore and never written again, so lookups need no lock.
	windows map[Category]*memWindow
}

// NewMemoryStore returns an in-process Store holding at most capacity values per category.
func NewMemoryStore(capacity int) Store {
	m := &memoryStore{
		capacity: capacity,
		windows:  make(map[Category]*memWindow, len(Categories)),
	}
	for _, c := range Categories {
		m.windows[c] = &memWindow{
			values: make([]int64, 0, capacity),
			index:  make(map[int64]struct{}, capacity),
		}
	}
	return m
}

func (m *memoryStore) MergeAndSnapshot(ctx context.Context, c Category, incoming []int64) ([]int64, []int64, error) {
	w, ok := m.windows[c]
	if !ok {
		return []int64{}, []int64{}, ErrInvalidCategory
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.snapshot()
	for _, v := range incoming {
		if _, seen := w.index[v]; seen {
			continue
		}
		w.values = append(w.values, v)
		w.index[v] = struct{}{}
	}
	if over := len(w.values) - m.capacity; over > 0 {
		for _, v := range w.values[:over] {
			delete(w.index, v)
		}
		kept := make([]int64, m.capacity)
		copy(kept, w.values[over:])
		w.values = kept
	}
	return prev, w.snapshot(), nil
}

func (m *memoryStore) Window(ctx context.Context, c Category) ([]int64, error) {
	w, ok := m.windows[c]
	if !ok {
		return []int64{}, ErrInvalidCategory
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot(), nil
}

func (m *memoryStore) Average(ctx context.Context, c Category) (float64, error) {
	values, err := m.Window(ctx, c)
	if err != nil {
		return 0, err
	}
	return Mean(values), nil
}

func (m *memoryStore) Ping(ctx context.Context) error {
	return nil
}
