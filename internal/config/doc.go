// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/modresolve/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/modresolve/config.cue on macOS, %APPDATA%\modresolve\config.cue
// on Windows). It declares the default repository chain, resolution tuning and the log level.
// Scalar settings may be overridden with MODRESOLVE_* environment variables.
//
// Files are validated against an embedded CUE schema (config_schema.cue); rules the schema
// cannot express, such as per-kind required fields and duplicate repositories, are checked
// after decoding.
package config
