package backend

import (
	"context"
	"sync"
	"time"

	"github.com/lysyi3m/news-comb/app/feed"
)

type memoryEntry struct {
	key string
	ts  time.Time
}

// MemoryStore keeps a bounded set of recently saved item keys. Entries leave
// the set when they outlive the ttl or when capacity is exceeded, oldest
// first.
type MemoryStore struct {
	mu       sync.Mutex
	items    map[string]time.Time
	order    []memoryEntry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

const (
	DefaultMemoryCapacity = 10000
	DefaultMemoryTTL      = 7 * 24 * time.Hour
)

func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	return &MemoryStore{
		items:    make(map[string]time.Time, capacity),
		order:    make([]memoryEntry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Exists(ctx context.Context, header, source string) (bool, error) {
	key := ItemKey(header, source)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.seen(key, now), nil
}

func (s *MemoryStore) Save(ctx context.Context, item feed.Item) (bool, error) {
	key := ItemKey(item.Header, item.SourceName)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen(key, now) {
		return false, nil
	}

	s.items[key] = now
	s.order = append(s.order, memoryEntry{key: key, ts: now})
	s.compact(now)

	return true, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *MemoryStore) seen(key string, now time.Time) bool {
	ts, ok := s.items[key]
	return ok && now.Sub(ts) <= s.ttl
}

func (s *MemoryStore) compact(now time.Time) {
	cutoff := now.Add(-s.ttl)

	for len(s.order) > 0 && (len(s.items) > s.capacity || s.order[0].ts.Before(cutoff)) {
		oldest := s.order[0]
		s.order = s.order[1:]

		if ts, ok := s.items[oldest.key]; ok && ts.Equal(oldest.ts) {
			delete(s.items, oldest.key)
		}
	}
}
