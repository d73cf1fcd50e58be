// SPDX-License-Identifier: MPL-2.0

package target

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedTarget is the sentinel error for triples without a known
	// tag mapping.
	ErrUnsupportedTarget = errors.New("unsupported target")

	// ErrInvalidTag is the sentinel error for tag strings this package
	// cannot produce.
	ErrInvalidTag = errors.New("invalid compatibility tag")

	// ErrInterpreterRequired is the sentinel error for extension modules
	// whose interpreter tag cannot be derived without a Python version.
	ErrInterpreterRequired = errors.New("python interpreter version required")
)

type (
	// UnsupportedTargetError reports a target triple or an OS/architecture
	// combination without tag mapping.
	UnsupportedTargetError struct {
		Triple string
		Reason string
	}

	// InvalidTagError reports a free-form or malformed tag string.
	InvalidTagError struct {
		Tag    string
		Reason string
	}

	// Abi3WithoutVersionError is returned when the stable ABI is enabled
	// without an abi3-pyXY version feature and no interpreter is given.
	Abi3WithoutVersionError struct{}

	// InterpreterRequiredError is returned when a version-specific extension
	// module is built without an interpreter version.
	InterpreterRequiredError struct{}
)

func (e *UnsupportedTargetError) Error() string {
	return fmt.Sprintf("unsupported target %q: %s", e.Triple, e.Reason)
}

// Unwrap returns ErrUnsupportedTarget for errors.Is() compatibility.
func (e *UnsupportedTargetError) Unwrap() error { return ErrUnsupportedTarget }

func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("invalid tag %q: %s", e.Tag, e.Reason)
}

// Unwrap returns ErrInvalidTag for errors.Is() compatibility.
func (e *InvalidTagError) Unwrap() error { return ErrInvalidTag }

func (e *Abi3WithoutVersionError) Error() string {
	return "abi3 is enabled without a minimum python version; use an abi3-pyXY feature (e.g. abi3-py38) or pass an interpreter version"
}

// Unwrap returns ErrInterpreterRequired for errors.Is() compatibility.
func (e *Abi3WithoutVersionError) Unwrap() error { return ErrInterpreterRequired }

func (e *InterpreterRequiredError) Error() string {
	return "building a version-specific extension module needs the target python version"
}

// Unwrap returns ErrInterpreterRequired for errors.Is() compatibility.
func (e *InterpreterRequiredError) Unwrap() error { return ErrInterpreterRequired }
