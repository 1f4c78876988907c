// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package browser

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	pkgbrowser "github.com/pkg/browser"
)

// Target represents the browser target for launching URLs.
type Target string

const (
	// TargetDefault uses the system default browser
	TargetDefault Target = "default"
	// TargetNone disables browser launching
	TargetNone Target = "none"
)

// PortalBaseURL is the public Azure portal.
const PortalBaseURL = "https://portal.azure.com"

// ErrLaunchTimeout is returned when the opener does not return in time.
var ErrLaunchTimeout = errors.New("timed out opening browser")

// openURL is replaced in tests.
var openURL = func(u string) error {
	pkgbrowser.Stdout = io.Discard
	pkgbrowser.Stderr = io.Discard
	return pkgbrowser.OpenURL(u)
}

// ParseTarget accepts "", "default" and "none".
func ParseTarget(s string) (Target, error) {
	switch Target(s) {
	case "", TargetDefault:
		return TargetDefault, nil
	case TargetNone:
		return TargetNone, nil
	default:
		return "", fmt.Errorf("invalid browser target %q (valid: default, none)", s)
	}
}

// LaunchOptions contains options for launching a browser.
type LaunchOptions struct {
	URL    string
	Target Target
	// Timeout for the opener (default 5 seconds)
	Timeout time.Duration
}

// Launch opens opts.URL unless the target is TargetNone. It waits for the
// platform opener to return, up to the timeout.
func Launch(opts LaunchOptions) error {
	if err := ValidateURL(opts.URL); err != nil {
		return err
	}
	if opts.Target == TargetNone {
		return nil
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}

	done := make(chan error, 1)
	go func() {
		done <- openURL(opts.URL)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("could not open browser: %w", err)
		}
		return nil
	case <-time.After(opts.Timeout):
		return ErrLaunchTimeout
	}
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: URL must start with http:// or https://")
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}
	return nil
}

// PortalURL links to the overview blade of an Azure resource, given its ARM
// ID (/subscriptions/.../providers/Microsoft.KeyVault/vaults/NAME).
func PortalURL(resourceID string) (string, error) {
	if !strings.HasPrefix(resourceID, "/subscriptions/") {
		return "", fmt.Errorf("invalid resource ID %q", resourceID)
	}
	return PortalBaseURL + "/#@/resource" + resourceID + "/overview", nil
}
