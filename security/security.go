// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	// ErrInvalidPath indicates a path contains invalid characters or patterns.
	ErrInvalidPath = errors.New("invalid path")
	// ErrPathTraversal indicates a path escapes its allowed directories.
	ErrPathTraversal = errors.New("path traversal detected")
	// ErrInsecureFilePermissions indicates a file others can write to.
	ErrInsecureFilePermissions = errors.New("insecure file permissions")
)

// ValidatePath rejects empty paths and paths with parent directory
// references, before and after resolving symbolic links. A path that does
// not exist yet is validated by its cleaned form.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	if strings.Contains(path, "..") {
		return fmt.Errorf("%w: path contains parent directory reference", ErrPathTraversal)
	}

	resolved, err := resolve(path)
	if err != nil {
		return err
	}

	if strings.Contains(resolved, "..") {
		return fmt.Errorf("%w: resolved path contains parent directory reference", ErrPathTraversal)
	}

	return nil
}

// ValidatePathWithinBases validates path and ensures it resolves inside one
// of allowedBases, returning the resolved absolute path. With no bases only
// the structure of the path is checked.
func ValidatePathWithinBases(path string, allowedBases ...string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}

	realPath, err := resolve(path)
	if err != nil {
		return "", err
	}

	if len(allowedBases) == 0 {
		return realPath, nil
	}

	for _, base := range allowedBases {
		realBase, err := resolve(base)
		if err != nil {
			continue
		}
		if realPath == realBase || strings.HasPrefix(realPath, realBase+string(filepath.Separator)) {
			return realPath, nil
		}
	}

	return "", fmt.Errorf("%w: path is outside allowed directories", ErrPathTraversal)
}

// resolve returns the absolute, cleaned, symlink-free form of path. Missing
// paths resolve to their cleaned absolute form.
func resolve(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve path: %w", ErrInvalidPath, err)
	}
	absPath = filepath.Clean(absPath)

	realPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("%w: cannot resolve symbolic links: %w", ErrInvalidPath, err)
		}
		return absPath, nil
	}
	return realPath, nil
}

// IsContainerEnvironment detects Codespaces, dev containers, Kubernetes
// pods and Docker containers.
func IsContainerEnvironment() bool {
	if os.Getenv("CODESPACES") == "true" || os.Getenv("REMOTE_CONTAINERS") == "true" {
		return true
	}

	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// ValidateFilePermissions returns an error wrapping
// ErrInsecureFilePermissions when path is group- or world-writable.
// Windows uses ACLs, so the check is skipped there.
func ValidateFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		return fmt.Errorf("%w: %s is %04o", ErrInsecureFilePermissions, filepath.Base(path), perm)
	}

	return nil
}
