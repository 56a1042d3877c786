package history

import (
	"context"
	"errors"
	"sync"
)

const defaultMemoryCap = 256

// MemoryStore is a fixed-capacity ring of recent entries. It is the always
// available fallback when no database is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry // ring storage
	next    int     // next write position
	full    bool
}

// NewMemoryStore constructs a MemoryStore holding at most capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultMemoryCap
	}
	return &MemoryStore{entries: make([]Entry, capacity)}
}

// Record appends e, evicting the oldest entry once the ring is full.
func (s *MemoryStore) Record(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == "" {
		return errors.New("history: missing entry id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[s.next] = e
	s.next++
	if s.next == len(s.entries) {
		s.next = 0
		s.full = true
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMemoryCap
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.next
	if s.full {
		size = len(s.entries)
	}
	if limit > size {
		limit = size
	}

	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := s.next - i
		if idx < 0 {
			idx += len(s.entries)
		}
		out = append(out, s.entries[idx])
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
