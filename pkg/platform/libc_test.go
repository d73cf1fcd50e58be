// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"testing"
)

func TestDetectLibcFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		matches  map[string][]string
		globErr  error
		expected Libc
	}{
		{
			name:     "glibc host",
			expected: LibcGlibc,
		},
		{
			name:     "musl loader in /lib",
			matches:  map[string][]string{"/lib/ld-musl-*.so.1": {"/lib/ld-musl-x86_64.so.1"}},
			expected: LibcMusl,
		},
		{
			name:     "musl loader in /usr/lib",
			matches:  map[string][]string{"/usr/lib/ld-musl-*.so.1": {"/usr/lib/ld-musl-aarch64.so.1"}},
			expected: LibcMusl,
		},
		{
			name:     "glob error falls back to glibc",
			globErr:  errors.New("bad pattern"),
			expected: LibcGlibc,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			glob := func(pattern string) ([]string, error) {
				if tt.globErr != nil {
					return nil, tt.globErr
				}
				return tt.matches[pattern], nil
			}
			if got := detectLibcFrom(glob); got != tt.expected {
				t.Errorf("detectLibcFrom() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDetectLibc_Cached(t *testing.T) {
	t.Parallel()

	if first, second := DetectLibc(), DetectLibc(); first != second {
		t.Errorf("DetectLibc() not stable: %q then %q", first, second)
	}
}
