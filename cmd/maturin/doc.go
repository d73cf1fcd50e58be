// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for maturin.
//
// This package implements the Cobra command hierarchy: the root command,
// the build, sdist and develop commands producing and installing
// distributions, and the inspect, audit and config commands for looking at
// projects, binaries and configuration.
package cmd
