// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrManifest is the sentinel error for malformed or missing manifests.
	ErrManifest = errors.New("invalid manifest")

	// ErrUnresolvedInheritance is the sentinel error for workspace fields that
	// are inherited but not defined by the workspace.
	ErrUnresolvedInheritance = errors.New("unresolved workspace inheritance")

	// ErrCyclicDependency is the sentinel error for local dependency graphs
	// that cannot be vendored as a DAG.
	ErrCyclicDependency = errors.New("cyclic local dependency")
)

type (
	// ManifestError reports a manifest that cannot be read or interpreted.
	ManifestError struct {
		Path   string
		Reason string
		Err    error
	}

	// MissingLockfileError is returned for locked builds when no Cargo.lock
	// can be found for the crate or its workspace.
	MissingLockfileError struct {
		ManifestPath string
	}

	// UnresolvedInheritanceError reports a `{ workspace = true }` reference
	// the workspace does not satisfy.
	UnresolvedInheritanceError struct {
		ManifestPath  string
		WorkspacePath string
		Field         string
	}

	// CyclicDependencyError reports a cycle among local path dependencies.
	// Chain lists the manifest paths along the cycle, first and last equal.
	CyclicDependencyError struct {
		Chain []string
	}

	// ConflictingRequirementError reports one local crate reached through
	// two different version requirements.
	ConflictingRequirementError struct {
		Crate        string
		ManifestPath string
		Requirements []string
	}
)

func (e *ManifestError) Error() string {
	msg := fmt.Sprintf("manifest %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrManifest for errors.Is() compatibility.
func (e *ManifestError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrManifest, e.Err}
	}
	return []error{ErrManifest}
}

func (e *MissingLockfileError) Error() string {
	return fmt.Sprintf("locked build requested but no Cargo.lock found for %s", e.ManifestPath)
}

// Unwrap returns ErrManifest for errors.Is() compatibility.
func (e *MissingLockfileError) Unwrap() error { return ErrManifest }

func (e *UnresolvedInheritanceError) Error() string {
	if e.WorkspacePath == "" {
		return fmt.Sprintf("%s: field %q is inherited from a workspace, but the crate is not a workspace member", e.ManifestPath, e.Field)
	}
	return fmt.Sprintf("%s: field %q is inherited, but %s does not define it", e.ManifestPath, e.Field, e.WorkspacePath)
}

// Unwrap returns ErrUnresolvedInheritance for errors.Is() compatibility.
func (e *UnresolvedInheritanceError) Unwrap() error { return ErrUnresolvedInheritance }

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("local path dependencies form a cycle: %s", strings.Join(e.Chain, " -> "))
}

// Unwrap returns ErrCyclicDependency for errors.Is() compatibility.
func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

func (e *ConflictingRequirementError) Error() string {
	return fmt.Sprintf("local dependency %s (%s) is required with conflicting versions: %s",
		e.Crate, e.ManifestPath, strings.Join(e.Requirements, ", "))
}

// Unwrap returns ErrCyclicDependency for errors.Is() compatibility.
func (e *ConflictingRequirementError) Unwrap() error { return ErrCyclicDependency }
