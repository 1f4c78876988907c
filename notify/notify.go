// Package notify shows a desktop notification when a long upload finishes,
// so an operator who switched windows learns whether it worked.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
)

// Severity of a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification represents a notification to be displayed.
type Notification struct {
	Title    string
	Message  string
	Severity Severity
}

// Notifier sends notifications to the desktop.
type Notifier interface {
	Send(ctx context.Context, notification Notification) error
}

// Config contains notification system configuration.
type Config struct {
	// AppName prefixes every title.
	AppName string
	// Timeout bounds a single Send; desktop daemons can hang.
	Timeout time.Duration
}

// DefaultConfig returns default notification configuration.
func DefaultConfig() Config {
	return Config{
		AppName: "kvenv",
		Timeout: 5 * time.Second,
	}
}

var (
	ErrNotificationFailed = errors.New("failed to send notification")
	ErrTimeout            = errors.New("notification timeout")
)

// New returns a Notifier backed by beeep.
func New(config Config) Notifier {
	return &beeepNotifier{
		config: config,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

type beeepNotifier struct {
	config Config
	notify func(title, message string) error
}

func (n *beeepNotifier) Send(ctx context.Context, notification Notification) error {
	title := notification.Title
	if n.config.AppName != "" {
		title = n.config.AppName + ": " + title
	}

	if n.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.config.Timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- n.notify(title, notification.Message)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
		}
		return nil
	case <-ctx.Done():
		return ErrTimeout
	}
}

// ForUpload summarizes an upload sweep.
func ForUpload(vaultName string, succeeded, failed int) Notification {
	switch {
	case failed == 0:
		return Notification{
			Title:    "Upload complete",
			Message:  fmt.Sprintf("Uploaded %d secrets to %s", succeeded, vaultName),
			Severity: SeverityInfo,
		}
	case succeeded == 0:
		return Notification{
			Title:    "Upload failed",
			Message:  fmt.Sprintf("No secrets were uploaded to %s (%d failed)", vaultName, failed),
			Severity: SeverityError,
		}
	default:
		return Notification{
			Title:    "Upload finished with errors",
			Message:  fmt.Sprintf("Uploaded %d of %d secrets to %s", succeeded, succeeded+failed, vaultName),
			Severity: SeverityWarning,
		}
	}
}
