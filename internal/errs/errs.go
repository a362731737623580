// Package errs defines the error kinds returned by the platform, installation
// and volume operations. Expected conditions carry a Kind; anything without
// one (I/O, database) is treated as unexpected by callers.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an expected failure.
type Kind string

const (
	KindInvalidRequest       Kind = "invalid_request"
	KindNotFound             Kind = "not_found"
	KindAlreadyConfigured    Kind = "already_configured"
	KindAlreadyInstalling    Kind = "already_installing"
	KindInstallerNotSelected Kind = "installer_not_selected"
	KindDuplicateHostPath    Kind = "duplicate_host_path"
	KindExternalRunner       Kind = "external_runner_error"
	KindLastPlatform         Kind = "last_platform"
	KindConflict             Kind = "conflict"
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrInvalidRequest       = &Error{Kind: KindInvalidRequest}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrAlreadyConfigured    = &Error{Kind: KindAlreadyConfigured}
	ErrAlreadyInstalling    = &Error{Kind: KindAlreadyInstalling}
	ErrInstallerNotSelected = &Error{Kind: KindInstallerNotSelected}
	ErrDuplicateHostPath    = &Error{Kind: KindDuplicateHostPath}
	ErrExternalRunner       = &Error{Kind: KindExternalRunner}
	ErrLastPlatform         = &Error{Kind: KindLastPlatform}
	ErrConflict             = &Error{Kind: KindConflict}
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so the package sentinels work
// with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func InvalidRequest(format string, args ...interface{}) error {
	return newf(KindInvalidRequest, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newf(KindNotFound, format, args...)
}

func AlreadyConfigured(format string, args ...interface{}) error {
	return newf(KindAlreadyConfigured, format, args...)
}

func AlreadyInstalling(format string, args ...interface{}) error {
	return newf(KindAlreadyInstalling, format, args...)
}

func InstallerNotSelected(format string, args ...interface{}) error {
	return newf(KindInstallerNotSelected, format, args...)
}

func DuplicateHostPath(format string, args ...interface{}) error {
	return newf(KindDuplicateHostPath, format, args...)
}

func LastPlatform(format string, args ...interface{}) error {
	return newf(KindLastPlatform, format, args...)
}

// Conflict reports a write that lost to a concurrent writer of the same
// record.
func Conflict(format string, args ...interface{}) error {
	return newf(KindConflict, format, args...)
}

// ExternalRunner wraps a failure surfaced by the installer runner.
func ExternalRunner(err error, format string, args ...interface{}) error {
	return &Error{Kind: KindExternalRunner, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, or "" if err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsExpected reports whether err carries a Kind.
func IsExpected(err error) bool {
	return KindOf(err) != ""
}
