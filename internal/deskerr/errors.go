// Package deskerr defines the error taxonomy shared by every layer of the
// automation core: selector parsing, platform engines, the tree extractor,
// locators, and the workflow executor all fail through the same Kind set so
// the executor's retry/fallback logic can classify any error uniformly.
package deskerr

import (
	"errors"
	"fmt"
)

// Kind categorises a failure for retry and fallback decisions.
type Kind string

const (
	// KindElementNotFound means a selector resolved to zero elements, or a
	// previously resolved element is stale.
	KindElementNotFound Kind = "element_not_found"
	// KindTimeout means an operation did not complete within its deadline.
	KindTimeout Kind = "timeout"
	// KindSelectorParse means a textual selector failed to parse.
	KindSelectorParse Kind = "selector_parse"
	// KindInvalidArgument means a tool or step argument failed validation,
	// including after variable substitution.
	KindInvalidArgument Kind = "invalid_argument"
	// KindUnsupported means the requested operation has no implementation on
	// the active platform engine.
	KindUnsupported Kind = "unsupported"
	// KindPlatformTransient means the underlying accessibility API returned
	// an error that is likely to succeed on retry.
	KindPlatformTransient Kind = "platform_transient"
	// KindPlatformFatal means the underlying accessibility API returned an
	// error that will not resolve on retry.
	KindPlatformFatal Kind = "platform_fatal"
	// KindInterrupted means a blocking call was interrupted by cancellation
	// before it completed, distinct from an external deadline.
	KindInterrupted Kind = "interrupted"
	// KindToolFailed means a tool ran and returned a failure outcome.
	KindToolFailed Kind = "tool_failed"
	// KindParserFailed means an output parser could not produce a result.
	KindParserFailed Kind = "parser_failed"
	// KindCancelled means the workflow's cancellation token fired.
	KindCancelled Kind = "cancelled"
)

// Retryable reports whether an error of this kind is worth retrying per the
// executor's retry step (Timeout, ElementNotFound, Platform(transient),
// Interrupted).
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindElementNotFound, KindPlatformTransient, KindInterrupted:
		return true
	default:
		return false
	}
}

// Fatal reports whether an error of this kind aborts the workflow outright,
// regardless of continue_on_error/skippable/fallback handling.
func (k Kind) Fatal() bool {
	switch k {
	case KindSelectorParse, KindInvalidArgument, KindUnsupported, KindPlatformFatal:
		return true
	default:
		return false
	}
}

// Error is the structured error type carried across every layer. Message is
// kept to at most two sentences per the error-handling contract; Diagnostic
// holds optional machine-readable context (e.g. the selector column, the
// step id).
type Error struct {
	Kind       Kind
	Message    string
	Diagnostic map[string]any
	Cause      error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Cause.Error())
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithDiagnostic attaches a single diagnostic key/value and returns e for
// chaining.
func (e *Error) WithDiagnostic(key string, value any) *Error {
	if e.Diagnostic == nil {
		e.Diagnostic = make(map[string]any, 1)
	}
	e.Diagnostic[key] = value
	return e
}

// As extracts a *Error from err's chain, if present.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf returns the Kind carried by err if it is (or wraps) a *Error, and
// KindPlatformFatal otherwise — an unclassified error is treated as
// non-retryable and fatal rather than silently spun on.
func KindOf(err error) Kind {
	if de, ok := As(err); ok {
		return de.Kind
	}
	return KindPlatformFatal
}

// IsRetryable reports whether err should be retried per the step retry
// policy.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}

// ElementNotFound builds a KindElementNotFound error.
func ElementNotFound(format string, args ...any) *Error {
	return New(KindElementNotFound, format, args...)
}

// Timeout builds a KindTimeout error.
func Timeout(format string, args ...any) *Error {
	return New(KindTimeout, format, args...)
}

// SelectorParse builds a KindSelectorParse error with a column diagnostic.
func SelectorParse(column int, format string, args ...any) *Error {
	return New(KindSelectorParse, format, args...).WithDiagnostic("column", column)
}

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(format string, args ...any) *Error {
	return New(KindInvalidArgument, format, args...)
}

// Unsupported builds a KindUnsupported error.
func Unsupported(format string, args ...any) *Error {
	return New(KindUnsupported, format, args...)
}

// Cancelled builds a KindCancelled error.
func Cancelled(format string, args ...any) *Error {
	return New(KindCancelled, format, args...)
}
