// Package errs defines the error taxonomy shared by the profile, template and
// orchestration layers, and the CLI exit code each kind maps to.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the caller should react to it.
type Kind int

const (
	// KindInvalid is a bad argument from the caller (empty name, duplicate import).
	KindInvalid Kind = iota + 1
	// KindStructural is a missing or malformed required key in a document.
	KindStructural
	// KindNotFound is an unknown profile or template name.
	KindNotFound
	// KindNotUpgradable is an update request for a hand-imported profile.
	KindNotUpgradable
	// KindIO is a filesystem or network failure.
	KindIO
	// KindDaemonUnreachable means the daemon did not accept a reload.
	KindDaemonUnreachable
	// KindUnsupportedVersion is a template version newer than this build understands.
	KindUnsupportedVersion
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindStructural:
		return "structural"
	case KindNotFound:
		return "not_found"
	case KindNotUpgradable:
		return "not_upgradable"
	case KindIO:
		return "io"
	case KindDaemonUnreachable:
		return "daemon_unreachable"
	case KindUnsupportedVersion:
		return "unsupported_version"
	default:
		return "unknown"
	}
}

// Exit codes for the clashtui CLI
const (
	ExitSuccess            = 0
	ExitGeneralError       = 1
	ExitInvalid            = 2
	ExitStructural         = 3
	ExitNotFound           = 4
	ExitNotUpgradable      = 5
	ExitIO                 = 6
	ExitDaemonUnreachable  = 7
	ExitUnsupportedVersion = 8
)

// Error is the typed error carried through the backend
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindInvalid:
		return ExitInvalid
	case KindStructural:
		return ExitStructural
	case KindNotFound:
		return ExitNotFound
	case KindNotUpgradable:
		return ExitNotUpgradable
	case KindIO:
		return ExitIO
	case KindDaemonUnreachable:
		return ExitDaemonUnreachable
	case KindUnsupportedVersion:
		return ExitUnsupportedVersion
	default:
		return ExitGeneralError
	}
}

// New creates an Error of the given kind
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause with an Error of the given kind
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether any error in err's tree is an *Error of the given kind.
// Joined errors are searched branch by branch.
func Is(err error, kind Kind) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *Error:
		if e == nil {
			return false
		}
		return e.Kind == kind || Is(e.Cause, kind)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if Is(inner, kind) {
				return true
			}
		}
		return false
	}
	return Is(errors.Unwrap(err), kind)
}

// KindOf returns the kind of the outermost *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// ExitCode maps any error to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.ExitCode()
	}
	return ExitGeneralError
}

// Common constructors

// Structural reports a missing or malformed key
func Structural(format string, args ...any) *Error {
	return New(KindStructural, format, args...)
}

// ProfileNotFound reports an unknown profile name
func ProfileNotFound(name string) *Error {
	return New(KindNotFound, "profile not found: %s", name)
}

// TemplateNotFound reports an unknown template name
func TemplateNotFound(name string) *Error {
	return New(KindNotFound, "template not found: %s", name)
}

// NotUpgradable reports an update request for a hand-imported profile
func NotUpgradable(name string) *Error {
	return New(KindNotUpgradable, "profile %s was imported from a file and cannot be updated", name)
}

// IO wraps a filesystem or network failure
func IO(op string, cause error) *Error {
	return Wrap(KindIO, cause, "%s failed", op)
}

// DaemonUnreachable reports a reload that the daemon did not acknowledge.
// The active config on disk may be newer than what the daemon is serving.
func DaemonUnreachable(cause error) *Error {
	return Wrap(KindDaemonUnreachable, cause, "config written but daemon reload failed; daemon may be serving stale config")
}

// UnsupportedVersion reports a template version newer than supported
func UnsupportedVersion(got, max int) *Error {
	return New(KindUnsupportedVersion, "unsupported template version %d (max %d)", got, max)
}
