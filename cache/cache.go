// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package cache keeps JSON snapshots of slow lookups (the az subscription
// and vault inventory) on disk, keyed by name and invalidated by age or by
// a version string.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/jongio/kvenv/fileutil"
)

// Options configures a cache Manager.
type Options struct {
	Dir     string        // Directory to store cache files
	TTL     time.Duration // Time-to-live for cache entries; 0 never expires
	Version string        // Entries written under another version are ignored
}

// Stats tracks cache hit/miss statistics.
type Stats struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
	Errors int `json:"errors"`
}

// envelope is the on-disk format wrapping cached data with metadata.
type envelope struct {
	Metadata fileutil.CacheMetadata `json:"_cache"`
	Data     json.RawMessage        `json:"data"`
}

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9_\-.]`)

// Manager provides thread-safe file-based caching with TTL and version support.
type Manager struct {
	dir     string
	ttl     time.Duration
	version string
	mu      sync.RWMutex
	statsMu sync.Mutex
	stats   Stats
}

// NewManager creates a new cache manager.
func NewManager(opts Options) *Manager {
	return &Manager{
		dir:     opts.Dir,
		ttl:     opts.TTL,
		version: opts.Version,
	}
}

// DefaultDir is kvenv's directory under the user cache directory.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return filepath.Join(base, "kvenv"), nil
}

// Dir returns the directory entries are stored in.
func (m *Manager) Dir() string {
	return m.dir
}

// Get loads a cached value by key into target, which must be a pointer.
// It returns false without error when the entry is missing, expired, or
// from another version.
func (m *Manager) Get(key string, target interface{}) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := os.ReadFile(m.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			m.record(func(s *Stats) { s.Misses++ })
			return false, nil
		}
		m.record(func(s *Stats) { s.Errors++ })
		return false, fmt.Errorf("failed to read cache file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.record(func(s *Stats) { s.Errors++ })
		return false, fmt.Errorf("failed to parse cache file: %w", err)
	}

	if !env.Metadata.IsValid(m.ttl, m.version) {
		m.record(func(s *Stats) { s.Misses++ })
		return false, nil
	}

	if err := json.Unmarshal(env.Data, target); err != nil {
		m.record(func(s *Stats) { s.Errors++ })
		return false, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	m.record(func(s *Stats) { s.Hits++ })
	return true, nil
}

// Set stores a value in the cache.
func (m *Manager) Set(key string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := fileutil.EnsureDir(m.dir); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	rawData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	return fileutil.AtomicWriteJSON(m.keyPath(key), envelope{
		Metadata: fileutil.CacheMetadata{
			CachedAt: time.Now(),
			Version:  m.version,
		},
		Data: rawData,
	})
}

// Invalidate removes a specific cache entry.
func (m *Manager) Invalidate(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.keyPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache entry: %w", err)
	}
	return nil
}

// Clear removes every .json entry in the cache directory.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove cache file %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// GetStats returns cache hit/miss statistics.
func (m *Manager) GetStats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

// sanitizeKey replaces characters that are unsafe in file names.
func sanitizeKey(key string) string {
	return keySanitizer.ReplaceAllString(key, "_")
}

func (m *Manager) keyPath(key string) string {
	return filepath.Join(m.dir, sanitizeKey(key)+".json")
}

func (m *Manager) record(update func(*Stats)) {
	m.statsMu.Lock()
	update(&m.stats)
	m.statsMu.Unlock()
}
