// SPDX-License-Identifier: MPL-2.0

package wheel

import (
	"errors"
	"fmt"

	"github.com/zhaixiaojuan/maturin/pkg/project"
)

var (
	// ErrMissingArtifact is the sentinel error for compiled outputs a bridge
	// needs but the build did not produce.
	ErrMissingArtifact = errors.New("missing build artifact")

	// ErrReservedPath is the sentinel error for archive paths that cannot
	// be installed on Windows.
	ErrReservedPath = errors.New("reserved archive path")
)

type (
	// MissingArtifactError reports an absent compiled output.
	MissingArtifactError struct {
		Bridge project.BridgeKind
		// Artifact names the expected output ("library", "bindings" or a
		// binary name).
		Artifact string
		// Path is the expected location, empty when none was given.
		Path string
		Err  error
	}

	// ReservedPathError reports a staged file whose path contains a name
	// reserved on Windows.
	ReservedPathError struct {
		Path      string
		Component string
	}
)

func (e *MissingArtifactError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s bridge needs a %s artifact, none was produced", e.Bridge, e.Artifact)
	}
	msg := fmt.Sprintf("%s artifact for the %s bridge not found at %s", e.Artifact, e.Bridge, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MissingArtifactError) Unwrap() error { return ErrMissingArtifact }

func (e *ReservedPathError) Error() string {
	return fmt.Sprintf("%s: %q is a reserved file name on Windows", e.Path, e.Component)
}

func (e *ReservedPathError) Unwrap() error { return ErrReservedPath }
