// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package logutil is kvenv's logging setup on top of log/slog.
//
// main calls Setup once, after flags and config are resolved; packages then
// log through a ComponentLogger:
//
//	log := logutil.NewLogger("upload").WithVault(vaultName)
//	log.Debug("secret set", "key", key, "secret", name)
//
// Debug output is enabled by --debug or KVENV_DEBUG=true. --log-format json
// switches the handler to JSON.
//
// Attributes whose key names a secret value ("value", "secret_value",
// "password") are replaced with "[REDACTED]" by every handler this package
// builds. Keys and secret names are never redacted.
package logutil
