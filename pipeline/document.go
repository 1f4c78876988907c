package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jongio/kvenv/envfile"
	"github.com/jongio/kvenv/fileutil"
	"github.com/jongio/kvenv/secretname"
	"gopkg.in/yaml.v3"
)

// ErrWrite matches any failure to write a template file.
var ErrWrite = errors.New("failed to write template")

// ErrParameterized reports a reference whose vault name depends on the
// pipeline's environment parameter and no environment was supplied.
var ErrParameterized = errors.New("template is parameterized by environment")

// ErrMalformed indicates a document that does not have the template's shape.
var ErrMalformed = errors.New("malformed pipeline template")

// WriteError reports an unwritable template destination.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write template %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrWrite) true for every WriteError.
func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// Setting is one app setting assignment from the inline script.
type Setting struct {
	Name      string
	Reference string
}

// Document is the parsed form of a rendered template.
type Document struct {
	Parameters []string
	Stage      string
	Task       string
	Settings   []Setting
}

type rawDocument struct {
	Parameters []struct {
		Name string `yaml:"name"`
		Type string `yaml:"type"`
	} `yaml:"parameters"`
	Stages []struct {
		Stage string `yaml:"stage"`
		Jobs  []struct {
			Job   string `yaml:"job"`
			Steps []struct {
				Task   string `yaml:"task"`
				Inputs struct {
					InlineScript string `yaml:"inlineScript"`
				} `yaml:"inputs"`
			} `yaml:"steps"`
		} `yaml:"jobs"`
	} `yaml:"stages"`
}

// Parse reads a rendered template back into its parts.
func Parse(doc string) (*Document, error) {
	var raw rawDocument
	if err := yaml.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if len(raw.Stages) != 1 || len(raw.Stages[0].Jobs) != 1 || len(raw.Stages[0].Jobs[0].Steps) != 1 {
		return nil, fmt.Errorf("%w: expected a single stage, job and step", ErrMalformed)
	}

	step := raw.Stages[0].Jobs[0].Steps[0]
	out := &Document{
		Stage: raw.Stages[0].Stage,
		Task:  step.Task,
	}
	for _, p := range raw.Parameters {
		out.Parameters = append(out.Parameters, p.Name)
	}

	lines := strings.Split(step.Inputs.InlineScript, "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "az webapp config appsettings set") {
		return nil, fmt.Errorf("%w: inline script does not start with the appsettings command", ErrMalformed)
	}
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, ref, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w: setting line without '=': %q", ErrMalformed, line)
		}
		out.Settings = append(out.Settings, Setting{Name: name, Reference: strings.Trim(ref, `"`)})
	}

	return out, nil
}

// Parameterized reports whether any setting's vault name carries
// EnvironmentPlaceholder.
func (d *Document) Parameterized() bool {
	for _, s := range d.Settings {
		if strings.Contains(s.Reference, EnvironmentPlaceholder) {
			return true
		}
	}
	return false
}

// ResolveEnvironment substitutes environment for EnvironmentPlaceholder in
// ref. References without the placeholder are returned unchanged.
func ResolveEnvironment(ref, environment string) (string, error) {
	if !strings.Contains(ref, EnvironmentPlaceholder) {
		return ref, nil
	}
	if environment == "" {
		return "", ErrParameterized
	}
	return strings.ReplaceAll(ref, EnvironmentPlaceholder, environment), nil
}

// InvalidSecretNames returns the keys of t whose store-form name Key Vault
// would reject. Their references can never resolve.
func InvalidSecretNames(t *envfile.Table) []string {
	var bad []string
	for _, key := range t.Keys() {
		if secretname.Validate(secretname.ToStoreForm(key)) != nil {
			bad = append(bad, key)
		}
	}
	return bad
}

// Validate checks that doc parses as a pipeline template, contains exactly
// one setting per entry of t, in order, and that every referenced secret
// name is one Key Vault accepts.
func Validate(doc string, t *envfile.Table) error {
	parsed, err := Parse(doc)
	if err != nil {
		return err
	}

	if bad := InvalidSecretNames(t); len(bad) > 0 {
		return fmt.Errorf("%w: %s", secretname.ErrInvalidName, strings.Join(bad, ", "))
	}

	keys := t.Keys()
	if len(parsed.Settings) != len(keys) {
		return fmt.Errorf("%w: %d settings for %d entries", ErrMalformed, len(parsed.Settings), len(keys))
	}
	for i, key := range keys {
		want := settingName(key, t.Form())
		if parsed.Settings[i].Name != want {
			return fmt.Errorf("%w: setting %d is %q, want %q", ErrMalformed, i, parsed.Settings[i].Name, want)
		}
	}
	return nil
}

// OutputPath returns path with a .yml extension appended unless it already
// ends in .yml or .yaml. An empty path yields DefaultFileName.
func OutputPath(path string) string {
	if path == "" {
		return DefaultFileName
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return path
	default:
		return path + ".yml"
	}
}

// WriteFile writes doc to path atomically.
func WriteFile(path, doc string) error {
	if err := fileutil.AtomicWriteFile(path, []byte(doc), fileutil.FilePermission); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
