// Package errors provides error handling for Yanantin.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints that name the invariant a failure protects
//
// On top of the re-exports it defines the four store faults surfaced by every
// tensor store backend (local or remote) plus a generic store fault:
//
//	ErrImmutable         duplicate id on write
//	ErrNotFound          absent id or projection
//	ErrAccessDenied      access hook refused the operation
//	ErrInterfaceVersion  caller and callee contract versions disagree
//	ErrStore             backend-internal failure
//
// Usage:
//
//	if _, ok := s.tensors[t.ID]; ok {
//	    return errors.NewImmutableError("tensor", t.ID.String())
//	}
//
//	if errors.IsImmutable(err) {
//	    // compose a new record instead
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapOnce     = crdb.UnwrapOnce
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack returns the reportable stack trace attached to an error, if any.
var GetStack = crdb.GetReportableStackTrace

// Store faults. Every backend surfaces exactly these kinds; HTTP statuses of the
// remote gateway map onto them one to one.
var (
	// ErrImmutable indicates a write to an id that already holds a record
	ErrImmutable = New("record is immutable")

	// ErrNotFound indicates the requested record or projection does not exist
	ErrNotFound = New("not found")

	// ErrAccessDenied indicates the access hook refused the operation
	ErrAccessDenied = New("access denied")

	// ErrInterfaceVersion indicates incompatible store contract versions
	ErrInterfaceVersion = New("interface version mismatch")

	// ErrStore indicates a backend-internal failure
	ErrStore = New("store error")
)

// Invariant hints attached to store faults.
const (
	HintImmutable        = "tensors are immutable: compose, don't overwrite"
	HintNotFound         = "records are never deleted; check the id and the backend you are reading from"
	HintAccessDenied     = "the store's access policy refused this caller"
	HintInterfaceVersion = "client and gateway must share the same major interface version"
)

// NewImmutableError reports a write to an id that already exists.
// kind names the record type ("tensor", "correction", ...).
func NewImmutableError(kind, id string) error {
	err := Wrapf(ErrImmutable, "%s %s already exists", kind, id)
	return WithHint(err, HintImmutable)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	err := Wrap(ErrNotFound, fmt.Sprintf(format, args...))
	return WithHint(err, HintNotFound)
}

// NewAccessDeniedError reports a refusal by the access hook.
func NewAccessDeniedError(caller, operation, target string) error {
	msg := fmt.Sprintf("caller %q may not %s", caller, operation)
	if target != "" {
		msg += " " + target
	}
	return WithHint(Wrap(ErrAccessDenied, msg), HintAccessDenied)
}

// NewInterfaceVersionError reports a contract version mismatch.
func NewInterfaceVersionError(want, got string) error {
	err := Wrapf(ErrInterfaceVersion, "expected interface version %s, got %s", want, got)
	return WithHint(err, HintInterfaceVersion)
}

// WrapStoreError marks err as a backend-internal failure during op.
// Errors that already carry a store fault are returned with added context only.
func WrapStoreError(err error, op string) error {
	if err == nil {
		return nil
	}
	if IsAny(err, ErrImmutable, ErrNotFound, ErrAccessDenied, ErrInterfaceVersion, ErrStore) {
		return Wrap(err, op)
	}
	return Wrap(WithSecondaryError(ErrStore, err), fmt.Sprintf("%s: %v", op, err))
}

// IsImmutable checks if an error is or wraps ErrImmutable
func IsImmutable(err error) bool {
	return err != nil && Is(err, ErrImmutable)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsAccessDenied checks if an error is or wraps ErrAccessDenied
func IsAccessDenied(err error) bool {
	return err != nil && Is(err, ErrAccessDenied)
}

// IsInterfaceVersion checks if an error is or wraps ErrInterfaceVersion
func IsInterfaceVersion(err error) bool {
	return err != nil && Is(err, ErrInterfaceVersion)
}

// IsStoreError checks if an error is or wraps the generic ErrStore
func IsStoreError(err error) bool {
	return err != nil && Is(err, ErrStore)
}
