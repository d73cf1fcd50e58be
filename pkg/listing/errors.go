// SPDX-License-Identifier: MPL-2.0

package listing

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInRepository is returned by the git strategy when the root is
	// not inside a git work tree.
	ErrNotInRepository = errors.New("not inside a git repository")

	// ErrInvalidPattern is the sentinel error for malformed glob patterns.
	ErrInvalidPattern = errors.New("invalid glob pattern")
)

type (
	// InvalidPatternError reports an include or exclude glob that cannot be
	// compiled.
	InvalidPatternError struct {
		Pattern string
		Err     error
	}

	// ListingError wraps a failure to enumerate files under Root.
	ListingError struct {
		Root     string
		Strategy Strategy
		Err      error
	}
)

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid glob pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return ErrInvalidPattern }

func (e *ListingError) Error() string {
	return fmt.Sprintf("list %s files in %s: %v", e.Strategy, e.Root, e.Err)
}

func (e *ListingError) Unwrap() error { return e.Err }
