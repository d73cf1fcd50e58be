// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/maturin/config.cue (or the XDG equivalent on Linux,
// ~/Library/Application Support/maturin/config.cue on macOS, %APPDATA%\maturin\config.cue
// on Windows), falling back to ./config.cue. Environment variables prefixed with MATURIN_
// override file values, and SOURCE_DATE_EPOCH sets reproducible.source_date_epoch.
//
// Configuration files are validated against an embedded CUE schema (config_schema.cue).
package config
