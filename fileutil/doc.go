// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package fileutil writes kvenv's output files (generated pipeline
// templates, cached az inventories) so that a reader never sees a partial
// file: data goes to a temporary file in the target directory, is synced,
// and is renamed into place. Renames are retried briefly to ride out
// transient sharing violations on Windows.
//
// Files are created with FilePermission (0644) and directories with
// DirPermission (0750).
package fileutil
