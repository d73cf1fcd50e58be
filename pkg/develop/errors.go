// SPDX-License-Identifier: MPL-2.0

package develop

import (
	"errors"
	"fmt"
)

// ErrEnvironmentNotFound is the sentinel error for a target environment
// whose package directory cannot be located.
var ErrEnvironmentNotFound = errors.New("python environment not found")

// EnvironmentNotFoundError reports why no site-packages directory was found.
type EnvironmentNotFoundError struct {
	// Environment is the environment prefix, empty when none was given.
	Environment string
	Reason      string
}

func (e *EnvironmentNotFoundError) Error() string {
	if e.Environment == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Environment, e.Reason)
}

func (e *EnvironmentNotFoundError) Unwrap() error { return ErrEnvironmentNotFound }
