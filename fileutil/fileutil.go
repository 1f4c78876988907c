// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package fileutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// File permissions
const (
	// DirPermission is the default permission for creating directories (rwxr-x---)
	DirPermission = 0750
	// FilePermission is the default permission for creating files (rw-r--r--)
	FilePermission = 0644
)

const (
	renameAttempts = 5
	renameBackoff  = 20 * time.Millisecond
)

// AtomicWriteFile writes data to path through a synced temporary file and a
// rename. The parent directory must exist.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	// A unique temp name in the same directory avoids cross-device renames
	// and collisions between concurrent writers.
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = tmpFile.Close() }()

	fail := func(format string, err error) error {
		_ = os.Remove(tmpPath)
		return fmt.Errorf(format, err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		return fail("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fail("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fail("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fail("failed to set file permissions: %w", err)
	}

	var renameErr error
	for attempt := 0; attempt < renameAttempts; attempt++ {
		if renameErr = os.Rename(tmpPath, path); renameErr == nil {
			return nil
		}
		if attempt < renameAttempts-1 {
			time.Sleep(time.Duration(attempt+1) * renameBackoff)
		}
	}
	return fail("failed to rename temp file: %w", renameErr)
}

// AtomicWriteJSON writes data as indented JSON with AtomicWriteFile.
func AtomicWriteJSON(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return AtomicWriteFile(path, jsonData, FilePermission)
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, DirPermission); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// CacheMetadata is stored alongside cached data to track validity.
type CacheMetadata struct {
	// CachedAt is when the cache was created.
	CachedAt time.Time `json:"cachedAt"`
	// Version is the version string when the cache was created.
	Version string `json:"version,omitempty"`
}

// IsValid reports whether an entry with this metadata is still usable for
// the given TTL and version. Zero values disable the respective check.
func (m CacheMetadata) IsValid(ttl time.Duration, version string) bool {
	if ttl > 0 && time.Since(m.CachedAt) > ttl {
		return false
	}
	if version != "" && m.Version != version {
		return false
	}
	return true
}
