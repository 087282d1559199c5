// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

type (
	// ActionableError is a user-facing error. It names the operation that
	// failed, the repository or file involved, and what the user can do about
	// it, and may link to a catalog issue with extended guidance.
	//
	// Build one with ErrorContext:
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("open repository").
	//		WithResource("deps/lib.jar").
	//		WithSuggestion("Check that the archive exists and is a valid ZIP file").
	//		WithIssue(issue.ArchiveUnreadableId).
	//		Wrap(cause).
	//		BuildError()
	ActionableError struct {
		// Operation is a verb phrase such as "open repository".
		Operation string
		// Resource is the path, URI or repository ID involved, if any.
		Resource string
		// Suggestions are short remediation hints.
		Suggestions []string
		// Cause is the wrapped error, if any.
		Cause error
		// IssueID links to the catalog. Zero means no link.
		IssueID Id
	}

	// ErrorContext accumulates the fields of an ActionableError. A context
	// may be kept and wrapped around several causes.
	ErrorContext struct {
		ae ActionableError
	}
)

// NewErrorContext returns an empty builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// IssueOf returns the catalog issue linked to the outermost ActionableError
// in err's chain, or zero.
func IssueOf(err error) Id {
	var ae *ActionableError
	if errors.As(err, &ae) {
		return ae.IssueID
	}
	return 0
}

// Error renders "failed to <operation>[: <resource>][: <cause>]".
func (e *ActionableError) Error() string {
	parts := []string{"failed to " + e.Operation}
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ActionableError) Unwrap() error { return e.Cause }

// HasSuggestions reports whether any remediation hint is attached.
func (e *ActionableError) HasSuggestions() bool { return len(e.Suggestions) > 0 }

// Format renders the message followed by a bulleted suggestion list. In
// verbose mode the numbered cause chain is appended.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())

	if e.HasSuggestions() {
		b.WriteByte('\n')
		for _, s := range e.Suggestions {
			b.WriteString("\n  • ")
			b.WriteString(s)
		}
	}

	if verbose && e.Cause != nil {
		b.WriteString("\n\nError chain:")
		for i, msg := range causeChain(e.Cause) {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, msg)
		}
	}
	return b.String()
}

// Guidance renders the linked catalog issue as Markdown styled with
// stylePath. It returns "" when no issue is linked.
func (e *ActionableError) Guidance(stylePath string) (string, error) {
	if e.IssueID == 0 {
		return "", nil
	}
	iss := Get(e.IssueID)
	if iss == nil {
		return "", fmt.Errorf("unknown issue id %d", e.IssueID)
	}
	return iss.Render(stylePath)
}

// causeChain lists the messages of err and everything it wraps through
// single-error Unwrap.
func causeChain(err error) []string {
	var msgs []string
	for ; err != nil; err = errors.Unwrap(err) {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

// WithOperation sets the failed operation, a verb phrase.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.ae.Operation = op
	return c
}

// WithResource sets the path, URI or repository involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.ae.Resource = res
	return c
}

// WithSuggestion appends one or more remediation hints.
func (c *ErrorContext) WithSuggestion(sugs ...string) *ErrorContext {
	c.ae.Suggestions = append(c.ae.Suggestions, sugs...)
	return c
}

// WithIssue links the catalog entry id.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.ae.IssueID = id
	return c
}

// Wrap sets the cause, replacing any earlier one.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.ae.Cause = err
	return c
}

// Build returns the accumulated error, or nil when no operation was set.
func (c *ErrorContext) Build() *ActionableError {
	if c.ae.Operation == "" {
		return nil
	}
	ae := c.ae
	ae.Suggestions = slices.Clone(c.ae.Suggestions)
	return &ae
}

// BuildError is Build typed as error, so a missing operation yields a true
// nil interface.
func (c *ErrorContext) BuildError() error {
	if ae := c.Build(); ae != nil {
		return ae
	}
	return nil
}
