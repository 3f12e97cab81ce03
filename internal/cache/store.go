// Package cache provides a file-backed key/value store shared by the
// geocoding and classification caches. The whole mapping is loaded once at
// construction and rewritten to disk on every write; ingestion volume per
// run is bounded, so the full rewrite stays cheap. Entries never expire and
// are never deleted.
package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

// Store persists a string-keyed mapping as a flat JSON file. A missing or
// unreadable file degrades to an empty in-memory cache; a failed save is
// logged and dropped. The store must keep working without durable state.
type Store[V any] struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]V
}

// NewStore loads the mapping at path, or starts empty when the file is
// missing or unreadable.
func NewStore[V any](path string, logger *slog.Logger) *Store[V] {
	s := &Store[V]{
		path:    path,
		logger:  logger,
		entries: make(map[string]V),
	}
	s.load()
	return s
}

// Get returns the cached value for key.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.entries[key]
	return v, ok
}

// Put stores value under key and writes the mapping through to disk.
// An existing key is left untouched: cache entries are written once on the
// first successful external call and never replaced.
func (s *Store[V]) Put(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		return
	}
	s.entries[key] = value
	s.save()
}

// Len reports the number of cached entries.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store[V]) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cache load failed, starting empty", "path", s.path, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		s.logger.Warn("cache file unreadable, starting empty", "path", s.path, "error", err)
		s.entries = make(map[string]V)
	}
}

// save writes the full mapping. Callers hold s.mu, which prevents a
// lost-update race between concurrent full-file rewrites.
func (s *Store[V]) save() {
	data, err := json.Marshal(s.entries)
	if err != nil {
		s.logger.Warn("cache marshal failed, write dropped", "path", s.path, "error", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Warn("cache save failed, write dropped", "path", s.path, "error", err)
	}
}
