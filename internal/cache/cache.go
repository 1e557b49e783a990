// Package cache provides an in-process key→value store with per-entry TTL
// and prefix-based bulk invalidation. Expiry is enforced lazily on read;
// there is no background sweeper. Every consumer is request-scoped, so
// bounded staleness (never corruption) is the only concurrency risk.
package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTTL is applied by Set when the caller passes a non-positive ttl.
const DefaultTTL = 5 * time.Minute

const keySeparator = "|"

type entry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

// Store is an in-memory TTL cache. The zero value is not usable; construct
// with New. Lifecycle belongs to whoever builds the engine, not to a
// package-level singleton.
type Store struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	entries map[string]entry
}

func New(clock clockwork.Clock) *Store {
	return &Store{
		clock:   clock,
		entries: make(map[string]entry),
	}
}

// GenerateKey builds a deterministic cache key from a semantic prefix and an
// optional parameter set. Params are serialized sorted by name as k:v pairs,
// so equivalent logical queries collide on one key regardless of the order
// the params were supplied. An empty param set yields the prefix verbatim.
func GenerateKey(prefix string, params map[string]any) string {
	if len(params) == 0 {
		return prefix
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, fmt.Sprintf("%s:%v", name, params[name]))
	}

	return prefix + keySeparator + strings.Join(pairs, keySeparator)
}

// Get returns the stored value if present and unexpired. Expired entries are
// evicted on access and reported as a miss.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if s.clock.Since(e.insertedAt) > e.ttl {
		s.mu.Lock()
		// Re-check under the write lock; a newer Set may have replaced it.
		if cur, ok := s.entries[key]; ok && cur.insertedAt.Equal(e.insertedAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set unconditionally overwrites the entry, recording the insertion time.
// A non-positive ttl falls back to DefaultTTL.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{
		value:      value,
		insertedAt: s.clock.Now(),
		ttl:        ttl,
	}
}

// Invalidate removes exactly one entry. Removing an absent key is a no-op.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// InvalidateByPrefix removes every entry whose key starts with prefix. Used
// to blow away whole families of derived listings after a mutation.
func (s *Store) InvalidateByPrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
}

// Clear removes everything.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
}

// Stats reports the current entry count and key set for diagnostics and
// tests. Expired-but-unswept entries are still counted.
type Stats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return Stats{Size: len(s.entries), Keys: keys}
}
