// Package bicepdiag defines the small, closed set of error kinds used
// across the module restore engine. Every fallible operation in the
// engine returns an error that either is, or wraps, one of these kinds so
// that callers (the CLI, the language server) can map failures onto
// user-visible diagnostics without string-matching error messages.
package bicepdiag

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a restore-engine failure.
type Kind int

const (
	// Unhandled covers anything that doesn't fit one of the named kinds
	// below; the wrapped error's message is preserved verbatim.
	Unhandled Kind = iota
	// Malformed means a module reference string could not be parsed.
	Malformed
	// UnsupportedTarget means a reference used a scheme a particular
	// command contract forbids (e.g. a local path where only OCI targets
	// are accepted).
	UnsupportedTarget
	// FeatureDisabled means an OCI reference was rejected because the
	// registry experimental feature flag is off.
	FeatureDisabled
	// ModuleNotFound means the registry responded 404 to a manifest
	// request.
	ModuleNotFound
	// NotABicepModule means the manifest's config descriptor doesn't
	// match the engine's expected module-config profile.
	NotABicepModule
	// IntegrityError means a recomputed digest didn't match the digest
	// the registry claimed.
	IntegrityError
	// InvalidManifest means the manifest body didn't decode into a
	// structurally valid OCI manifest.
	InvalidManifest
	// Transport means a non-404 network failure occurred talking to a
	// registry.
	Transport
	// LocalIo means a filesystem operation against the local cache
	// failed.
	LocalIo
)

func (k Kind) String() string {
	switch k {
	case Malformed:
		return "Malformed"
	case UnsupportedTarget:
		return "UnsupportedTarget"
	case FeatureDisabled:
		return "FeatureDisabled"
	case ModuleNotFound:
		return "ModuleNotFound"
	case NotABicepModule:
		return "NotABicepModule"
	case IntegrityError:
		return "IntegrityError"
	case InvalidManifest:
		return "InvalidManifest"
	case Transport:
		return "Transport"
	case LocalIo:
		return "LocalIo"
	default:
		return "Unhandled"
	}
}

// Error is a Kind paired with the underlying cause. It implements the
// standard unwrap protocol so callers can still errors.Is/As through to
// whatever produced the failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err.Error())
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a *Error of the given kind wrapping err, with an optional
// formatted message prefix.
func New(kind Kind, err error, format string, args ...any) *Error {
	msg := ""
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Wrap classifies err into Unhandled unless it is already a *Error, in
// which case it is returned unchanged. It's intended for use at the
// outermost boundary of an operation (see Safe, the recover-to-error
// helper in this package) where a panic or an unexpected third-party
// error needs a Kind before it can be reported.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: Unhandled, Err: err}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and
// Unhandled otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unhandled
}
