package querycache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrMiss = errors.New("querycache: miss")

// Store is the shared backend of the cache. SetIfNewer must drop writes whose
// sequence is lower than the one already stored for the key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetIfNewer(ctx context.Context, key string, seq uint64, value []byte, ttl time.Duration) (bool, error)
	NextSeq(ctx context.Context, key string) (uint64, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
}

type memoryEntry struct {
	seq       uint64
	value     []byte
	expiresAt time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	seqs    map[string]uint64
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		seqs:    make(map[string]uint64),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return nil, ErrMiss
	}
	return e.value, nil
}

func (s *MemoryStore) SetIfNewer(_ context.Context, key string, seq uint64, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.live(key); ok && e.seq > seq {
		return false, nil
	}

	entry := memoryEntry{seq: seq, value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = entry
	return true, nil
}

func (s *MemoryStore) NextSeq(_ context.Context, key string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seqs[key]++
	return s.seqs[key], nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0)
	for k := range s.entries {
		if _, ok := s.live(k); ok && strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

// live must be called with mu held.
func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}
