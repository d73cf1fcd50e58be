// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"path/filepath"
	"sync"
)

// Libc constants.
const (
	// LibcNone is reported on platforms without a Linux C library.
	LibcNone Libc = ""
	// LibcGlibc is the GNU C library.
	LibcGlibc Libc = "gnu"
	// LibcMusl is the musl C library.
	LibcMusl Libc = "musl"
)

// detectLibcOnce caches the C library detection for the lifetime of the process.
//
// INVARIANT: detectLibcFrom MUST NOT panic. sync.OnceValue propagates a panic
// on every call, creating a persistent crash condition.
var detectLibcOnce = sync.OnceValue(func() Libc {
	return detectLibcFrom(filepath.Glob)
})

// Libc identifies the C library of a Linux host.
type Libc string

// DetectLibc returns the C library of the current Linux host. The result is
// cached after the first call.
//
// Detection looks for the musl dynamic loader (/lib/ld-musl-*.so.1); any
// other Linux host is assumed to use glibc.
func DetectLibc() Libc {
	return detectLibcOnce()
}

// detectLibcFrom performs libc detection using the provided glob function.
// Accepting glob as a parameter allows tests to inject custom behavior
// without depending on the host filesystem.
func detectLibcFrom(glob func(string) ([]string, error)) Libc {
	for _, pattern := range []string{"/lib/ld-musl-*.so.1", "/usr/lib/ld-musl-*.so.1"} {
		if matches, err := glob(pattern); err == nil && len(matches) > 0 {
			return LibcMusl
		}
	}
	return LibcGlibc
}
