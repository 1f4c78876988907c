// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package security holds the checks kvenv applies to paths it is handed
// from outside: env files and output paths named by MCP clients, and the
// permission bits of env files that contain secrets.
//
// ValidatePathWithinBases is the gate for any path that does not come from
// the operator's own command line: it rejects ".." segments, resolves
// symbolic links, and requires the result to sit under an allowed base.
package security
