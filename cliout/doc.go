// Package cliout is kvenv's terminal output: colored status lines, labels
// and tables for people, and JSON for scripts.
//
//	cliout.Success("Uploaded %d secrets to %s", n, vault)
//	cliout.Error("failed to read %s", path)
//
// Every command builds a result value and calls Print with it and a
// formatter; with --output json the value is encoded instead of running
// the formatter, so JSON output is one document per command.
//
// Colors are disabled by NoColor, by the NO_COLOR environment variable, and
// when stdout is not a terminal (see ConfigureColor). Symbols fall back to
// ASCII on consoles that cannot render Unicode.
package cliout
