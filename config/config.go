// Package config loads kvenv settings from .kvenv.yaml and the environment.
// Command-line flags are applied on top by the cmd package, giving the
// precedence flags > environment > file > defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jongio/kvenv/envfile"
	"github.com/jongio/kvenv/fileutil"
	"github.com/jongio/kvenv/keyvault"
	"github.com/jongio/kvenv/logutil"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = ".kvenv.yaml"

// EnvVault overrides the vault name.
const EnvVault = "KVENV_VAULT"

// Defaults.
const (
	DefaultOutput                 = "env.yml"
	DefaultMaxConsecutiveFailures = 5
	DefaultCacheTTL               = 10 * time.Minute
)

// Config holds every setting that can come from a file.
type Config struct {
	Vault                  string        `yaml:"vault"`
	Output                 string        `yaml:"output"`
	KeyPolicy              string        `yaml:"keyPolicy"`
	EnvironmentSuffix      bool          `yaml:"environmentSuffix"`
	RateLimit              float64       `yaml:"rateLimit"`
	MaxConsecutiveFailures int           `yaml:"maxConsecutiveFailures"`
	Notify                 bool          `yaml:"notify"`
	CacheTTL               time.Duration `yaml:"cacheTTL"`

	// Source is the file the config was read from, empty when none was.
	Source string `yaml:"-"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Output:                 DefaultOutput,
		KeyPolicy:              string(envfile.KeepKeys),
		MaxConsecutiveFailures: DefaultMaxConsecutiveFailures,
		CacheTTL:               DefaultCacheTTL,
	}
}

// Load reads the config file at path over the defaults, then applies the
// environment. An empty path looks for DefaultFileName in the working
// directory, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	if explicit || fileutil.FileExists(path) {
		// #nosec G304 -- path is chosen by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.Source = path
		logutil.NewLogger("config").Debug("loaded config", "path", path)
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode merges YAML data into cfg. Unknown keys are rejected so typos do
// not silently fall back to defaults.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides settings from environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvVault); v != "" {
		c.Vault = v
	}
}

// Validate checks values that have a restricted range. The vault name is
// not checked here; commands that need one validate it.
func (c *Config) Validate() error {
	if _, err := envfile.ParseKeyPolicy(c.KeyPolicy); err != nil {
		return err
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rateLimit must not be negative, got %v", c.RateLimit)
	}
	if c.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("maxConsecutiveFailures must not be negative, got %d", c.MaxConsecutiveFailures)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cacheTTL must not be negative, got %s", c.CacheTTL)
	}
	return nil
}

// Policy returns the parsed key policy.
func (c *Config) Policy() envfile.KeyPolicy {
	p, err := envfile.ParseKeyPolicy(c.KeyPolicy)
	if err != nil {
		return envfile.KeepKeys
	}
	return p
}

// UploadOptions returns the uploader settings.
func (c *Config) UploadOptions() keyvault.UploadOptions {
	return keyvault.UploadOptions{
		RateLimit:              c.RateLimit,
		MaxConsecutiveFailures: c.MaxConsecutiveFailures,
	}
}
