// Package cache is a concurrency-safe in-memory key-value store for
// serialized pipeline results.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"sync"
)

// Key identifies one cacheable generation: topic, difficulty bucket,
// and pipeline variant. Difficulty is bucketed to one decimal so near
// misses ("0.50" vs "0.52") share an entry.
type Key struct {
	Topic      string
	Difficulty float64
	Variant    string
}

// hash renders the key as a deterministic digest. Topic matching is
// case- and whitespace-insensitive.
func (k Key) hash() string {
	topic := strings.ToLower(strings.TrimSpace(k.Topic))
	bucket := math.Round(k.Difficulty*10) / 10
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%.1f|%s", topic, bucket, k.Variant))
	return hex.EncodeToString(sum[:])
}

// Store holds serialized values. Values are copied on the way in and
// out, so callers can never alias a cached entry. Safe for concurrent
// use across sessions.
type Store struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// New creates an empty Store.
func New() *Store {
	return &Store{entries: make(map[string][]byte)}
}

// Get returns a copy of the value for key, or (nil, false) on a miss.
func (s *Store) Get(k Key) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.entries[k.hash()]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Put stores a copy of the value under key, replacing any prior entry.
func (s *Store) Put(k Key, v []byte) {
	in := make([]byte, len(v))
	copy(in, v)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[k.hash()] = in
}

// Invalidate removes the entry for key, if any.
func (s *Store) Invalidate(k Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, k.hash())
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string][]byte)
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
