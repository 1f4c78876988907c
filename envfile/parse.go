// Package envfile parses line-oriented KEY=VALUE files into an ordered Table.
//
// The format is deliberately simple: one assignment per line, blank lines and
// lines starting with '#' ignored, no quoting, no escapes, no multi-line
// values. All whitespace is removed from keys and values. Lines that do not
// contain '=' are skipped without being reported.
package envfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jongio/kvenv/logutil"
	"github.com/jongio/kvenv/secretname"
	"github.com/jongio/kvenv/security"
)

// maxLineSize bounds a single line; longer lines fail the read.
const maxLineSize = 1024 * 1024

// KeyPolicy selects the spelling applied to keys while parsing.
type KeyPolicy string

const (
	// KeepKeys leaves keys as written in the file.
	KeepKeys KeyPolicy = "keep"
	// HyphensToUnderscores rewrites keys into file form.
	HyphensToUnderscores KeyPolicy = "file"
	// UnderscoresToHyphens rewrites keys into store form at parse time.
	// Tables built this way are marked secretname.StoreForm so the
	// template renderer does not normalize them a second time.
	UnderscoresToHyphens KeyPolicy = "store"
)

// ParseKeyPolicy parses a policy name. Empty selects KeepKeys.
func ParseKeyPolicy(s string) (KeyPolicy, error) {
	switch KeyPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", KeepKeys:
		return KeepKeys, nil
	case HyphensToUnderscores:
		return HyphensToUnderscores, nil
	case UnderscoresToHyphens:
		return UnderscoresToHyphens, nil
	default:
		return "", fmt.Errorf("invalid key policy: %s (valid options: keep, file, store)", s)
	}
}

// Form returns the key form a table parsed with this policy is in.
func (p KeyPolicy) Form() secretname.Form {
	switch p {
	case HyphensToUnderscores:
		return secretname.FileForm
	case UnderscoresToHyphens:
		return secretname.StoreForm
	default:
		return secretname.AsWritten
	}
}

// Options configures parsing.
type Options struct {
	KeyPolicy KeyPolicy
}

// ErrRead matches any failure to open or read a source file.
var ErrRead = errors.New("failed to read env file")

// ReadError reports an unreadable source file.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read env file %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRead) true for every ReadError.
func (e *ReadError) Is(target error) bool { return target == ErrRead }

// Load parses the file at path into t and returns t. A nil t starts a new
// table in the policy's key form.
//
// t is only modified when the whole file was read successfully; on error it
// is returned unchanged together with a *ReadError.
func Load(path string, t *Table, opts Options) (*Table, error) {
	log := logutil.NewLogger("envfile")
	if t == nil {
		t = NewTable(opts.KeyPolicy.Form())
	}

	// #nosec G304 -- path is chosen by the operator
	f, err := os.Open(path)
	if err != nil {
		return t, &ReadError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	if permErr := security.ValidateFilePermissions(path); errors.Is(permErr, security.ErrInsecureFilePermissions) {
		// Bind mounts in dev containers routinely show up as 0777.
		if security.IsContainerEnvironment() {
			log.Debug("env file is writable by others", "path", path, "error", permErr)
		} else {
			log.Warn("env file is writable by others", "path", path, "error", permErr)
		}
	}

	staged := t.Clone()
	if staged.Len() == 0 {
		staged.form = opts.KeyPolicy.Form()
	}
	if err := Parse(f, staged, opts); err != nil {
		return t, &ReadError{Path: path, Err: err}
	}

	t.replaceWith(staged)
	log.Debug("loaded env file", "path", path, "entries", t.Len())
	return t, nil
}

// Parse reads lines from r into t. It only fails when r fails.
func Parse(r io.Reader, t *Table, opts Options) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		parseLine(scanner.Text(), t, opts)
	}
	return scanner.Err()
}

// ParseLines applies the parse rules to an in-memory sequence of lines.
func ParseLines(lines []string, t *Table, opts Options) {
	for _, line := range lines {
		parseLine(line, t, opts)
	}
}

// parseLine adds the assignment on line to t, if there is one.
func parseLine(line string, t *Table, opts Options) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return
	}

	idx := strings.Index(trimmed, "=")
	if idx < 0 {
		return
	}

	key := NormalizeKey(trimmed[:idx], opts.KeyPolicy)
	if key == "" {
		return
	}

	t.Set(key, removeWhitespace(trimmed[idx+1:]))
}

// NormalizeKey strips all whitespace from raw and applies policy.
func NormalizeKey(raw string, policy KeyPolicy) string {
	return secretname.Convert(removeWhitespace(raw), policy.Form())
}

func removeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
