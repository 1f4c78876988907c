// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package logutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// EnvDebug enables debug logging when set to "true".
const EnvDebug = "KVENV_DEBUG"

// Format selects the handler.
type Format string

const (
	// FormatText is slog's key=value text handler.
	FormatText Format = "text"
	// FormatJSON is slog's JSON handler.
	FormatJSON Format = "json"
)

// Redacted replaces the value of any attribute in redactedKeys.
const Redacted = "[REDACTED]"

var redactedKeys = map[string]bool{
	"value":        true,
	"secret_value": true,
	"password":     true,
}

// Options configures the global logger.
type Options struct {
	Debug  bool
	Format Format
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

var (
	mu           sync.RWMutex
	globalLogger *slog.Logger
	current      = Options{Format: FormatText}
)

func init() {
	Setup(Options{Debug: os.Getenv(EnvDebug) == "true"})
}

// ParseFormat accepts "", "text" and "json".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q (valid: text, json)", s)
	}
}

// Setup replaces the global logger and slog's default.
// This function is safe for concurrent use.
func Setup(opts Options) {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}
	if opts.Format == "" {
		opts.Format = FormatText
	}

	mu.Lock()
	defer mu.Unlock()

	current = opts
	globalLogger = slog.New(newHandler(opts))
	slog.SetDefault(globalLogger)
}

func newHandler(opts Options) slog.Handler {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	}

	if opts.Format == FormatJSON {
		return slog.NewJSONHandler(opts.Writer, handlerOpts)
	}
	return slog.NewTextHandler(opts.Writer, handlerOpts)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// IsDebugEnabled returns true if debug logging is enabled, either by Setup
// or by KVENV_DEBUG.
func IsDebugEnabled() bool {
	mu.RLock()
	debug := current.Debug
	mu.RUnlock()
	return debug || os.Getenv(EnvDebug) == "true"
}

// CurrentFormat returns the handler format in use.
func CurrentFormat() Format {
	mu.RLock()
	defer mu.RUnlock()
	return current.Format
}

// Logger returns the underlying slog.Logger for advanced usage.
// This function is safe for concurrent use.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}
