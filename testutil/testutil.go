package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jongio/kvenv/cliout"
)

// CaptureOutput runs fn with cliout redirected to a buffer and returns what
// was written along with fn's error. The previous writer is restored
// afterwards.
//
// Example:
//
//	out, err := testutil.CaptureOutput(t, func() error {
//	    return cmd.Execute()
//	})
func CaptureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	prev := cliout.SetOutput(&buf)
	defer cliout.SetOutput(prev)

	err := fn()
	return buf.String(), err
}

// WriteEnvFile writes content to name inside a fresh temp directory and
// returns its path.
func WriteEnvFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// Chdir changes the working directory for the rest of the test.
func Chdir(t *testing.T, dir string) {
	t.Helper()

	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Logf("failed to restore working directory: %v", err)
		}
	})
}
