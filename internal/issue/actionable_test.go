// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/zhaixiaojuan/maturin/pkg/wheel"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such file")
	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{"operation only", &ActionableError{Operation: "build wheel"}, "failed to build wheel"},
		{
			"with resource",
			&ActionableError{Operation: "build wheel", Resource: "my-project"},
			"failed to build wheel: my-project",
		},
		{
			"with cause",
			&ActionableError{Operation: "audit binary", Resource: "libfoo.so", Cause: cause},
			"failed to audit binary: libfoo.so: no such file",
		},
		{
			"cause without resource",
			&ActionableError{Operation: "load configuration", Cause: cause},
			"failed to load configuration: no such file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("stage: %w", wheel.ErrMissingArtifact)
	err := error(&ActionableError{Operation: "build wheel", Cause: cause})
	if !errors.Is(err, wheel.ErrMissingArtifact) {
		t.Error("errors.Is() did not reach the sentinel through the cause")
	}
	var ae *ActionableError
	if !errors.As(fmt.Errorf("outer: %w", err), &ae) || ae.Operation != "build wheel" {
		t.Errorf("errors.As() = %v", ae)
	}
	if (&ActionableError{Operation: "x"}).Unwrap() != nil {
		t.Error("Unwrap() without cause != nil")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	err := NewErrorContext().
		WithOperation("build wheel").
		WithResource("my-project").
		WithSuggestions("Run 'cargo build' first", "Pass the library with --artifact").
		Wrap(fmt.Errorf("stage: %w", wheel.ErrMissingArtifact)).
		Build()

	short := err.Format(false)
	for _, want := range []string{
		"failed to build wheel: my-project",
		"\n\n  • Run 'cargo build' first\n  • Pass the library with --artifact",
		"Run with --verbose for help on this error.",
	} {
		if !strings.Contains(short, want) {
			t.Errorf("Format(false) missing %q:\n%s", want, short)
		}
	}
	if strings.Contains(short, "Error chain") {
		t.Error("Format(false) includes the error chain")
	}

	long := err.Format(true)
	if !strings.Contains(long, "Error chain:\n  1. stage: "+wheel.ErrMissingArtifact.Error()) {
		t.Errorf("Format(true) missing chain:\n%s", long)
	}
	if !strings.Contains(long, "\n  2. "+wheel.ErrMissingArtifact.Error()) {
		t.Errorf("Format(true) missing sentinel in chain:\n%s", long)
	}
	if strings.Contains(long, "--verbose") {
		t.Error("Format(true) points at --verbose")
	}

	plain := (&ActionableError{Operation: "write archive", Cause: errors.New("boom")}).Format(false)
	if plain != "failed to write archive: boom" {
		t.Errorf("Format(false) of unclassified error = %q", plain)
	}
}

func TestActionableError_Issue(t *testing.T) {
	t.Parallel()

	explicit := &ActionableError{Operation: "load configuration", IssueID: ConfigLoadFailedId, Cause: wheel.ErrMissingArtifact}
	if got := explicit.Issue(); got == nil || got.Id() != ConfigLoadFailedId {
		t.Errorf("Issue() = %v, want the explicit issue", got)
	}
	derived := &ActionableError{Operation: "build wheel", Cause: wheel.ErrReservedPath}
	if got := derived.Issue(); got == nil || got.Id() != ReservedPathId {
		t.Errorf("Issue() = %v, want ReservedPathId", got)
	}
	if got := (&ActionableError{Operation: "x", Cause: errors.New("plain")}).Issue(); got != nil {
		t.Errorf("Issue() = %v, want nil", got)
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation != nil")
	}
	if NewErrorContext().BuildError() != nil {
		t.Error("BuildError() without operation != nil")
	}

	cause := errors.New("cause")
	ae := NewErrorContext().
		WithOperation("install into environment").
		WithResource(".venv").
		WithSuggestion("Activate a virtualenv").
		WithIssue(EnvironmentNotFoundId).
		Wrap(cause).
		Build()
	if ae.Operation != "install into environment" || ae.Resource != ".venv" || ae.Cause != cause {
		t.Errorf("Build() = %+v", ae)
	}
	if len(ae.Suggestions) != 1 || ae.IssueID != EnvironmentNotFoundId {
		t.Errorf("Build() = %+v", ae)
	}

	var target *ActionableError
	if err := NewErrorContext().WithOperation("x").BuildError(); !errors.As(err, &target) {
		t.Errorf("BuildError() = %T, want *ActionableError", err)
	}
}

func TestWrapWithOperation(t *testing.T) {
	t.Parallel()

	if WrapWithOperation(nil, "build wheel") != nil {
		t.Error("WrapWithOperation(nil) != nil")
	}
	cause := errors.New("cause")
	ae := WrapWithOperation(cause, "build sdist")
	if ae.Operation != "build sdist" || ae.Cause != cause || ae.Resource != "" {
		t.Errorf("WrapWithOperation() = %+v", ae)
	}
}
