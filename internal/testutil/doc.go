// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers that fail the test on error.
//
// It covers environment variables and the user config directory
// (MustSetenv, MustUnsetenv, SetConfigHome), file tree fixtures (WriteFiles,
// MustMkdirAll), resource cleanup (MustClose) and synthetic native binaries
// (ELF, MachO, FatMachO, PE, Wasm) used to exercise the compatibility
// checker without committing binary blobs.
package testutil
