// Package apperr defines the error kinds surfaced by the photo engine. Every
// engine operation returns either nil or an *Error carrying one of the kinds
// below, so callers can decide whether to retry without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindDerivationFailed   Kind = "derivation_failed"
	KindStorageWriteFailed Kind = "storage_write_failed"
	KindStorageReadFailed  Kind = "storage_read_failed"
	KindCatalogWriteFailed Kind = "catalog_write_failed"
	KindCatalogReadFailed  Kind = "catalog_read_failed"
	// KindForbidden covers both a missing entity and one owned by somebody
	// else. The two are never distinguished outward.
	KindForbidden Kind = "forbidden"
	KindConflict  Kind = "conflict"
	KindInternal  Kind = "internal"
)

// Error is the concrete error type returned by the engine.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an error of the given kind that wraps err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Forbidden is the single outward signal for "not found or not yours".
func Forbidden() *Error {
	return New(KindForbidden, "not found or access denied")
}

// KindOf reports the kind of err, or KindInternal when err does not carry one.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether the failure is transient I/O or a lost race,
// as opposed to a terminal rejection of the request.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindStorageWriteFailed, KindStorageReadFailed,
		KindCatalogWriteFailed, KindCatalogReadFailed, KindConflict:
		return true
	default:
		return false
	}
}
