// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for modresolve.
//
// The root command carries the global flags (--verbose, --config, --repo);
// subcommands resolve patterns against the repository chain (resolve, cat)
// and manage the configuration file (config).
package cmd
