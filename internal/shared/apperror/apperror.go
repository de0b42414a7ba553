// Package apperror defines the closed set of failure kinds shared by extraction,
// validation, provider calls and the HTTP boundary.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind identifies a class of failure. A Kind is itself an error so it can be used
// as an errors.Is target.
type Kind string

const (
	UnsupportedFormat   Kind = "UnsupportedFormat"
	ExtractionFailure   Kind = "ExtractionFailure"
	EmptyContent        Kind = "EmptyContent"
	TooShort            Kind = "TooShort"
	NotConfigured       Kind = "NotConfigured"
	Unauthorized        Kind = "Unauthorized"
	RateLimited         Kind = "RateLimited"
	Timeout             Kind = "Timeout"
	Unavailable         Kind = "Unavailable"
	MalformedResponse   Kind = "MalformedResponse"
	UnsupportedProvider Kind = "UnsupportedProvider"
)

// Sentinels for errors.Is comparisons.
var (
	ErrUnsupportedFormat   error = UnsupportedFormat
	ErrExtractionFailure   error = ExtractionFailure
	ErrEmptyContent        error = EmptyContent
	ErrTooShort            error = TooShort
	ErrNotConfigured       error = NotConfigured
	ErrUnauthorized        error = Unauthorized
	ErrRateLimited         error = RateLimited
	ErrTimeout             error = Timeout
	ErrUnavailable         error = Unavailable
	ErrMalformedResponse   error = MalformedResponse
	ErrUnsupportedProvider error = UnsupportedProvider
)

func (k Kind) Error() string { return string(k) }

// Retryable reports whether a caller may reasonably try the same request again.
func (k Kind) Retryable() bool {
	switch k {
	case RateLimited, Timeout, Unavailable:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a kind to the status the API answers with.
func (k Kind) HTTPStatus() int {
	switch k {
	case UnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case ExtractionFailure, EmptyContent, TooShort:
		return http.StatusUnprocessableEntity
	case NotConfigured:
		return http.StatusServiceUnavailable
	case Unauthorized, Unavailable, MalformedResponse:
		return http.StatusBadGateway
	case RateLimited:
		return http.StatusTooManyRequests
	case Timeout:
		return http.StatusGatewayTimeout
	case UnsupportedProvider:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Op names the stage that failed (for example
// "extract.pdf" or "llm.claude"); Provider is set for provider failures.
type Error struct {
	Kind     Kind
	Op       string
	Provider string
	Elapsed  time.Duration
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a bare Kind target against the classified kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New classifies err under kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf classifies a formatted message under kind.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// ForProvider classifies a provider failure.
func ForProvider(kind Kind, provider string, err error) *Error {
	return &Error{Kind: kind, Op: "llm." + provider, Provider: provider, Err: err}
}

// KindOf returns the kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	if err == nil {
		return "", false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	var k Kind
	if errors.As(err, &k) {
		return k, true
	}
	return "", false
}

// WithElapsed returns a copy of err carrying elapsed. Unclassified errors are
// wrapped as Unavailable so callers always see a kind.
func WithElapsed(err error, elapsed time.Duration) *Error {
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Elapsed = elapsed
		return &cp
	}
	if k, ok := KindOf(err); ok {
		return &Error{Kind: k, Elapsed: elapsed, Err: err}
	}
	return &Error{Kind: Unavailable, Elapsed: elapsed, Err: err}
}

// ElapsedOf returns the elapsed time recorded on a classified error.
func ElapsedOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.Elapsed
	}
	return 0
}
