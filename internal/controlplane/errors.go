package controlplane

import (
	"errors"
	"fmt"
)

// Class categorizes an adapter error at creation time. Callers branch on the
// class, never on provider error text.
type Class string

const (
	// ClassConflict marks an idempotent conflict: the resource already
	// exists or was already deleted. Treated as success by callers.
	ClassConflict Class = "idempotent-conflict"
	// ClassNotFound marks an observation of an absent resource where
	// absence is an error for the operation attempted.
	ClassNotFound Class = "not-found"
	// ClassTransient marks a temporary provider condition (throttling,
	// in-progress state). Retried via bounded polling.
	ClassTransient Class = "transient"
	// ClassFatal marks an error with no automatic remedy.
	ClassFatal Class = "fatal"
)

// Error is a classified adapter error. Platform implementations classify
// provider errors exactly once, where they occur; the raw provider error is
// retained as supporting detail via Unwrap.
type Error struct {
	Class Class
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps a provider error with a classification.
func NewError(class Class, op string, err error) *Error {
	return &Error{Class: class, Op: op, Err: err}
}

func hasClass(err error, class Class) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Class == class
}

// IsConflict reports whether err is an idempotent conflict.
func IsConflict(err error) bool { return hasClass(err, ClassConflict) }

// IsNotFound reports whether err marks an absent resource.
func IsNotFound(err error) bool { return hasClass(err, ClassNotFound) }

// IsTransient reports whether err marks a temporary provider condition.
func IsTransient(err error) bool { return hasClass(err, ClassTransient) }

// IsFatal reports whether err has no automatic remedy. Unclassified errors
// are fatal: only the platform layer may downgrade severity.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Class == ClassFatal
	}
	return true
}
