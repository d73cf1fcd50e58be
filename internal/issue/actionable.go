// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError is a failed build step with the context a user needs to
	// fix it: the step, the file or crate involved, and remediation hints.
	//
	// Construct it with the ErrorContext builder:
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("build wheel").
	//		WithResource("target/release/libmy_project.so").
	//		WithSuggestion("Run 'cargo build --release' first").
	//		Wrap(originalErr).
	//		BuildError()
	ActionableError struct {
		// Operation is the step that failed, as a verb phrase ("build wheel").
		Operation string
		// Resource is the file, crate or environment involved (optional).
		Resource string
		// Suggestions are remediation hints shown below the message.
		Suggestions []string
		// Cause is the underlying error.
		Cause error
		// IssueID selects the help page shown for the error (optional).
		// Zero derives it from the class of Cause.
		IssueID Id
	}

	// ErrorContext accumulates the fields of an ActionableError.
	ErrorContext struct {
		operation   string
		resource    string
		suggestions []string
		cause       error
		issueID     Id
	}
)

// NewErrorContext creates a new ErrorContext builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// WrapWithOperation wraps err with the failed operation. It returns nil for
// a nil err.
func WrapWithOperation(err error, operation string) *ActionableError {
	if err == nil {
		return nil
	}
	return &ActionableError{Operation: operation, Cause: err}
}

// Error returns "failed to <operation>: <resource>: <cause>".
func (e *ActionableError) Error() string {
	var msg strings.Builder
	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)
	if e.Resource != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Resource)
	}
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}
	return msg.String()
}

// Unwrap returns the underlying cause error for use with errors.Is/As.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Issue returns the help page describing the error, or nil.
func (e *ActionableError) Issue() *Issue {
	if e.IssueID != 0 {
		return issues[e.IssueID]
	}
	return ForError(e.Cause)
}

// Format returns the message followed by the suggestions as a bullet list.
// verbose adds the numbered cause chain; otherwise errors with a help page
// point at --verbose.
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder
	msg.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n")
		for _, suggestion := range e.Suggestions {
			msg.WriteString("\n  • ")
			msg.WriteString(suggestion)
		}
	}

	switch {
	case verbose && e.Cause != nil:
		msg.WriteString("\n\nError chain:")
		depth := 1
		for err := e.Cause; err != nil; err = errors.Unwrap(err) {
			fmt.Fprintf(&msg, "\n  %d. %s", depth, err.Error())
			depth++
		}
	case !verbose && e.Issue() != nil:
		msg.WriteString("\n\nRun with --verbose for help on this error.")
	}

	return msg.String()
}

// WithOperation sets the failed step, a verb phrase like "build wheel".
// Required.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

// WithResource sets the file, crate or environment involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithSuggestion appends one remediation hint.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// WithSuggestions appends remediation hints.
func (c *ErrorContext) WithSuggestions(sugs ...string) *ErrorContext {
	c.suggestions = append(c.suggestions, sugs...)
	return c
}

// Wrap sets the underlying cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// WithIssue selects the help page shown for the error.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.issueID = id
	return c
}

// Build creates the ActionableError, or nil when no operation is set.
func (c *ErrorContext) Build() *ActionableError {
	if c.operation == "" {
		return nil
	}
	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: c.suggestions,
		Cause:       c.cause,
		IssueID:     c.issueID,
	}
}

// BuildError is Build returning an error, nil when no operation is set.
func (c *ErrorContext) BuildError() error {
	ae := c.Build()
	if ae == nil {
		return nil
	}
	return ae
}
