// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package fileutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yml")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), FilePermission))
	require.NoError(t, AtomicWriteFile(path, []byte("second"), FilePermission))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should not be left behind")
}

func TestAtomicWriteFile_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on Windows")
	}
	path := filepath.Join(t.TempDir(), "secret.yml")

	require.NoError(t, AtomicWriteFile(path, []byte("x"), 0600))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestAtomicWriteFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "env.yml")

	err := AtomicWriteFile(path, []byte("x"), FilePermission)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create temp file")
}

func TestAtomicWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")

	require.NoError(t, AtomicWriteJSON(path, map[string]int{"a": 1}))

	var got map[string]int
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]int{"a": 1}, got)
}

func TestAtomicWriteJSON_MarshalError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")

	err := AtomicWriteJSON(path, map[string]interface{}{"ch": make(chan int)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to marshal JSON")
	assert.False(t, FileExists(path))
}

func TestAtomicWrite_Concurrency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.json")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = AtomicWriteJSON(path, map[string]int{"n": n})
		}(i)
	}
	wg.Wait()

	var got map[string]int
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got), "file must always hold one complete document")
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEnsureDir_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), FilePermission))

	assert.Error(t, EnsureDir(path))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".kvenv.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vault: x\n"), FilePermission))

	assert.True(t, FileExists(path))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
	assert.False(t, FileExists(dir))
}

func TestCacheMetadata_IsValid(t *testing.T) {
	tests := []struct {
		name    string
		meta    CacheMetadata
		ttl     time.Duration
		version string
		want    bool
	}{
		{"fresh", CacheMetadata{CachedAt: time.Now()}, time.Minute, "", true},
		{"expired", CacheMetadata{CachedAt: time.Now().Add(-time.Hour)}, time.Minute, "", false},
		{"no ttl", CacheMetadata{CachedAt: time.Now().Add(-24 * time.Hour)}, 0, "", true},
		{"version match", CacheMetadata{CachedAt: time.Now(), Version: "1"}, 0, "1", true},
		{"version mismatch", CacheMetadata{CachedAt: time.Now(), Version: "1"}, 0, "2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.meta.IsValid(tt.ttl, tt.version))
		})
	}
}
