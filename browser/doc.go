// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package browser opens Azure portal pages for kvenv's vaults in the
// user's default browser, through github.com/pkg/browser.
//
// Only http and https URLs are opened. TargetNone turns launching off for
// headless sessions; callers then print the URL instead.
package browser
