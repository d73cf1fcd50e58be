// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides benchmarks for PGO profile generation.
// These benchmarks cover the hot paths of a packaging run:
//   - CUE configuration loading and schema validation
//   - Cargo workspace and pyproject resolution
//   - ELF inspection against the platform policies
//   - Wheel and source distribution archiving
//
// To generate a profile, run:
//
//	go test ./internal/benchmark -bench . -cpuprofile default.pgo
package benchmark
