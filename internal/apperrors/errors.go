package apperrors

import (
	"errors"
	"strings"
)

type Kind string

const (
	KindConfig      Kind = "config"
	KindTransient   Kind = "transient"
	KindRateLimit   Kind = "rate_limit"
	KindAuth        Kind = "auth"
	KindValidation  Kind = "validation"
	KindUnavailable Kind = "provider_unavailable"
	KindPersistence Kind = "persistence"
	KindCanceled    Kind = "canceled"
	KindCover       Kind = "cover_missing"
)

type Error struct {
	Kind Kind
	// SafeMessage is intended for user-facing output and logs.
	SafeMessage string
	// Cause keeps the original internal error for troubleshooting.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.SafeMessage); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindConfig:
		return "Invalid configuration."
	case KindTransient:
		return "Temporary upstream error. Please try again."
	case KindRateLimit:
		return "Rate limit exceeded. Please try again later."
	case KindAuth:
		return "Authentication failed. Please verify your API key and permissions."
	case KindValidation:
		return "Response validation failed."
	case KindUnavailable:
		return "Provider is not available."
	case KindPersistence:
		return "Failed to persist state."
	case KindCanceled:
		return "Operation canceled."
	case KindCover:
		return "Cover image unavailable."
	default:
		return "Request failed."
	}
}

func New(kind Kind, safeMessage string, cause error) error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = defaultSafeMessage(kind)
	}
	return &Error{
		Kind:        kind,
		SafeMessage: msg,
		Cause:       cause,
	}
}

func Config(err error) error       { return New(KindConfig, "", err) }
func Transient(err error) error    { return New(KindTransient, "", err) }
func RateLimit(err error) error    { return New(KindRateLimit, "", err) }
func Auth(err error) error         { return New(KindAuth, "", err) }
func Validation(err error) error   { return New(KindValidation, "", err) }
func Unavailable(err error) error  { return New(KindUnavailable, "", err) }
func Persistence(err error) error  { return New(KindPersistence, "", err) }
func Canceled(err error) error     { return New(KindCanceled, "", err) }
func CoverMissing(err error) error { return New(KindCover, "", err) }

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}

// IsRetryable reports whether another attempt may succeed.
// Transient: server errors, network issues.
// RateLimit: upstream throttling.
// Validation: LLM output quality issues; the model is non-deterministic,
// so retrying may succeed.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindTransient || e.Kind == KindRateLimit || e.Kind == KindValidation
}

func IsRateLimit(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindRateLimit
}

// IsFatal reports whether the error must abort the run. Only configuration
// errors abort; everything else degrades to an annotated result.
func IsFatal(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindConfig
}
