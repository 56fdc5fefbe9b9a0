// Package errs defines the engine's kind-tagged error taxonomy. Every
// error that crosses a component boundary carries one of the Kind
// values below, recoverable with KindOf even after further wrapping.
package errs

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies an error for callers that need to branch on the
// failure category rather than match message text.
type Kind string

const (
	Configuration     Kind = "Configuration"
	IOFailure         Kind = "IOFailure"
	StateCorruption   Kind = "StateCorruption"
	IntegrityMismatch Kind = "IntegrityMismatch"
	CryptoFailure     Kind = "CryptoFailure"
	SafetyAbort       Kind = "SafetyAbort"
	Concurrency       Kind = "Concurrency"
	Cancelled         Kind = "Cancelled"
)

type kindedError struct {
	kind Kind
	error
}

func (k *kindedError) Unwrap() error { return k.error }

// New creates an error tagged with kind.
func New(kind Kind, msg string) error {
	return &kindedError{kind: kind, error: errors.New(msg)}
}

// Newf creates a formatted error tagged with kind.
func Newf(kind Kind, format string, args ...any) error {
	return &kindedError{kind: kind, error: errors.Newf(format, args...)}
}

// Wrap tags cause with kind, preserving it as the wrapped error so
// errors.Is/errors.As against cause still succeed.
func Wrap(kind Kind, cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return &kindedError{kind: kind, error: errors.Wrap(cause, msg)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &kindedError{kind: kind, error: errors.Wrapf(cause, format, args...)}
}

// KindOf returns the nearest tagged Kind found by unwrapping err, or
// IOFailure as the default for untagged errors (most untagged failures
// in this engine originate from os/io calls).
func KindOf(err error) Kind {
	for err != nil {
		if ke, ok := err.(*kindedError); ok {
			return ke.kind
		}
		err = errors.Unwrap(err)
	}
	return IOFailure
}

// Is reports whether the nearest tagged Kind in err's chain (as
// returned by KindOf, so IOFailure for untagged errors) equals kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// String implements fmt.Stringer for Kind so it serializes cleanly in
// log fields and structured results.
func (k Kind) String() string { return string(k) }

var _ fmt.Stringer = Configuration
