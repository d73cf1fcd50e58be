// SPDX-License-Identifier: MPL-2.0

package platform

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// Architecture constants for runtime.GOARCH comparisons.
const (
	AMD64   = "amd64"
	I386    = "386"
	ARM64   = "arm64"
	ARM     = "arm"
	PPC64LE = "ppc64le"
	PPC64   = "ppc64"
	S390X   = "s390x"
	RISCV64 = "riscv64"
	Wasm    = "wasm"
)
