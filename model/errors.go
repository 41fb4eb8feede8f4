package model

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for transport-layer mapping (see httpserver).
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindExpired            Kind = "expired"
	KindRateLimited        Kind = "rate_limited"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstreamDegraded   Kind = "upstream_degraded"
	KindInternal           Kind = "internal"
)

// Error is the taxonomy described in spec §7. Field and Bucket are
// optional context used by callers that need the failing field name or
// rate-limit bucket identity.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Bucket  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, &Error{Kind: KindNotFound}) style checks by
// comparing only the Kind field.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func NewValidationError(field, message string) error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func NewNotFoundError(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

func NewExpiredError(message string) error {
	return &Error{Kind: KindExpired, Message: message}
}

func NewRateLimitedError(bucket, message string) error {
	return &Error{Kind: KindRateLimited, Bucket: bucket, Message: message}
}

func NewUpstreamUnavailableError(message string, cause error) error {
	return &Error{Kind: KindUpstreamUnavailable, Message: message, Err: cause}
}

func NewUpstreamDegradedError(message string, cause error) error {
	return &Error{Kind: KindUpstreamDegraded, Message: message, Err: cause}
}

func NewInternalError(message string, cause error) error {
	return &Error{Kind: KindInternal, Message: message, Err: cause}
}

// KindOf extracts the Kind from err, defaulting to KindInternal when err
// does not carry one of our typed errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
