package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps windows in process memory. Limits are only enforced per
// instance, so it is meant for development and single-instance deploys.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

type memoryWindow struct {
	hits   []time.Time // ascending
	window time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*memoryWindow)}
}

func (s *MemoryStore) Hit(
	_ context.Context,
	key string,
	now time.Time,
	window time.Duration,
	limit int,
	_ string,
) (HitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		w = &memoryWindow{}
		s.windows[key] = w
	}
	w.window = window
	w.evict(now)

	admitted := false
	if len(w.hits) < limit {
		w.hits = append(w.hits, now)
		admitted = true
	}

	oldest := now
	if len(w.hits) > 0 {
		oldest = w.hits[0]
	}

	return HitResult{Admitted: admitted, Count: len(w.hits), Oldest: oldest}, nil
}

func (s *MemoryStore) Count(_ context.Context, key string, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		return 0, nil
	}

	cutoff := now.Add(-window)
	n := 0
	for _, h := range w.hits {
		if h.After(cutoff) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Sweep drops windows with no live entries and returns how many were
// removed. The housekeeping loop calls it.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		w.evict(now)
		if len(w.hits) == 0 {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// evict drops hits at or before now-window.
func (w *memoryWindow) evict(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	w.hits = w.hits[i:]
}
