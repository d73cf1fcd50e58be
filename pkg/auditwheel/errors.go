// SPDX-License-Identifier: MPL-2.0

package auditwheel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNonCompliantBinary is the sentinel error for artifacts that fail the
// requested compatibility policy.
var ErrNonCompliantBinary = errors.New("non-compliant binary")

type (
	// Violation is a single requirement of an artifact that a policy does
	// not allow.
	Violation struct {
		Library string `yaml:"library,omitempty"`
		Symbol  string `yaml:"symbol,omitempty"`
		Version string `yaml:"version,omitempty"`
		Reason  string `yaml:"reason"`
	}

	// NonCompliantBinaryError reports an artifact that does not satisfy the
	// requested tag, or that could not be parsed at all.
	NonCompliantBinaryError struct {
		Path       string
		Tag        string
		Violations []Violation
		Reason     string
		Hint       string
	}
)

func (v Violation) String() string {
	switch {
	case v.Symbol != "":
		return fmt.Sprintf("%s@%s: %s", v.Symbol, v.Version, v.Reason)
	case v.Library != "":
		return fmt.Sprintf("%s: %s", v.Library, v.Reason)
	default:
		return v.Reason
	}
}

func (e *NonCompliantBinaryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Path)
	if e.Tag != "" {
		fmt.Fprintf(&b, " is not compliant with %s", e.Tag)
	} else {
		b.WriteString(" is not a compliant binary")
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if len(e.Violations) > 0 {
		parts := make([]string, len(e.Violations))
		for i, v := range e.Violations {
			parts[i] = v.String()
		}
		fmt.Fprintf(&b, ": %s", strings.Join(parts, "; "))
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (hint: %s)", e.Hint)
	}
	return b.String()
}

func (e *NonCompliantBinaryError) Unwrap() error { return ErrNonCompliantBinary }

func malformed(path string, cause any) *NonCompliantBinaryError {
	return &NonCompliantBinaryError{Path: path, Reason: fmt.Sprintf("malformed binary: %v", cause)}
}
