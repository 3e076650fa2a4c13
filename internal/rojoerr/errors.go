// Package rojoerr defines the error kinds used throughout the daemon. Their
// mapping onto HTTP status codes lives in the web façade.
package rojoerr

import "fmt"

// Kind classifies an error the way the façade needs to: which status code
// to return, and whether the condition is fatal to the session.
type Kind int

const (
	KindConfig Kind = iota
	KindIO
	KindDecode
	KindProtocol
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindIO:
		return "io"
	case KindDecode:
		return "decode"
	case KindProtocol:
		return "protocol"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind, so callers can branch on
// classification without string-matching messages.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a Kind-tagged error with no underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a Kind-tagged error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags err with a Kind and a contextual message, following the
// fmt.Errorf("...: %w", err) idiom used throughout this codebase.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf walks the error chain looking for a *Error and returns its Kind.
// Errors that were never tagged are reported as KindInternal, since an
// untagged failure reaching the façade is itself a bug.
func KindOf(err error) Kind {
	var tagged *Error
	for {
		if e, ok := err.(*Error); ok {
			tagged = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
		if err == nil {
			break
		}
	}
	if tagged == nil {
		return KindInternal
	}
	return tagged.Kind
}

// Config is a convenience constructor for a ConfigError-kind failure.
func Config(msg string) *Error { return New(KindConfig, msg) }

// ConfigWrap wraps err as a ConfigError.
func ConfigWrap(msg string, err error) *Error { return Wrap(KindConfig, msg, err) }

// IO is a convenience constructor for an IoError-kind failure.
func IO(msg string) *Error { return New(KindIO, msg) }

// IOWrap wraps err as an IoError.
func IOWrap(msg string, err error) *Error { return Wrap(KindIO, msg, err) }

// Decode is a convenience constructor for a DecodeError-kind failure.
func Decode(msg string) *Error { return New(KindDecode, msg) }

// DecodeWrap wraps err as a DecodeError.
func DecodeWrap(msg string, err error) *Error { return Wrap(KindDecode, msg, err) }

// Protocol is a convenience constructor for a ProtocolError-kind failure.
func Protocol(msg string) *Error { return New(KindProtocol, msg) }

// Internal is a convenience constructor for an InternalError-kind failure.
func Internal(msg string) *Error { return New(KindInternal, msg) }

// InternalWrap wraps err as an InternalError.
func InternalWrap(msg string, err error) *Error { return Wrap(KindInternal, msg, err) }
