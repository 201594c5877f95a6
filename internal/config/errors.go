package config

import "errors"

// Kind classifies a config-provider failure so callers (forward-auth
// handler, admin API) can map it to the right HTTP status per spec.md §7.
type Kind string

const (
	KindConfigParse       Kind = "config_parse"
	KindConfigUnavailable Kind = "config_unavailable"
	KindNotFound          Kind = "not_found"
	KindNotSupported      Kind = "not_supported"
)

// Error wraps a Kind with a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target carries the same Kind, allowing errors.Is(err,
// &Error{Kind: KindNotFound}) style checks.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NotFound builds a KindNotFound error for a missing route id.
func NotFound(id string) error {
	return newError(KindNotFound, "route not found: "+id, nil)
}

// NotSupported builds a KindNotSupported error for a mutation attempted
// against the file-backed provider.
func NotSupported(op string) error {
	return newError(KindNotSupported, "operation not supported by this provider: "+op, nil)
}

// Unavailable builds a KindConfigUnavailable error, wrapping cause.
func Unavailable(cause error) error {
	return newError(KindConfigUnavailable, "config unavailable", cause)
}

// ParseFailed builds a KindConfigParse error, wrapping cause.
func ParseFailed(cause error) error {
	return newError(KindConfigParse, "config parse failed", cause)
}

// IsNotFound reports whether err is (or wraps) a KindNotFound error.
func IsNotFound(err error) bool { return hasKind(err, KindNotFound) }

// IsNotSupported reports whether err is (or wraps) a KindNotSupported error.
func IsNotSupported(err error) bool { return hasKind(err, KindNotSupported) }

// IsUnavailable reports whether err is (or wraps) a KindConfigUnavailable error.
func IsUnavailable(err error) bool { return hasKind(err, KindConfigUnavailable) }

func hasKind(err error, kind Kind) bool {
	var cerr *Error
	if !errors.As(err, &cerr) {
		return false
	}
	return cerr.Kind == kind
}
