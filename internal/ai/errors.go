package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Cause names a failure class of a model call. It is stable and safe to show
// to API clients.
type Cause string

const (
	CauseAuth          Cause = "auth"
	CauseRateLimit     Cause = "rate_limited"
	CauseModelNotFound Cause = "model_not_found"
	CauseBadRequest    Cause = "bad_request"
	CauseQuota         Cause = "quota_exceeded"
	CauseServer        Cause = "upstream_error"
	CauseUnreachable   Cause = "unreachable"
	CauseTimeout       Cause = "timeout"
	CauseUnknown       Cause = "unknown"
)

// AuthError is a rejected or missing API key (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string { return "authentication failed: " + e.APIError.Error() }

// RateLimitError is a 429. RetryAfter is zero when the provider gave no hint.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %s", e.RetryAfter, e.APIError.Error())
	}
	return "rate limited: " + e.APIError.Error()
}

// ModelNotFoundError means the provider does not serve the requested model.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string { return "model not found: " + e.APIError.Error() }

// BadRequestError is any other 4xx the provider rejected.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return "bad request: " + e.APIError.Error() }

// QuotaExceededError is a billing or quota rejection.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string { return "quota exceeded: " + e.APIError.Error() }

// ServerError is a 5xx from the provider.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return "provider error: " + e.APIError.Error() }

// UnreachableError is a transport failure before any HTTP status was seen.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("endpoint unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error   { return e.Err }
func (e *AuthError) Unwrap() error          { return e.APIError }
func (e *RateLimitError) Unwrap() error     { return e.APIError }
func (e *ModelNotFoundError) Unwrap() error { return e.APIError }
func (e *BadRequestError) Unwrap() error    { return e.APIError }
func (e *QuotaExceededError) Unwrap() error { return e.APIError }
func (e *ServerError) Unwrap() error        { return e.APIError }

// CauseOf classifies err by walking its chain. Errors that carry none of the
// typed failures map to CauseUnknown.
func CauseOf(err error) Cause {
	var (
		authErr *AuthError
		rlErr   *RateLimitError
		nfErr   *ModelNotFoundError
		brErr   *BadRequestError
		qErr    *QuotaExceededError
		sErr    *ServerError
		unreach *UnreachableError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return CauseTimeout
	case errors.As(err, &authErr):
		return CauseAuth
	case errors.As(err, &rlErr):
		return CauseRateLimit
	case errors.As(err, &nfErr):
		return CauseModelNotFound
	case errors.As(err, &qErr):
		return CauseQuota
	case errors.As(err, &brErr):
		return CauseBadRequest
	case errors.As(err, &sErr):
		return CauseServer
	case errors.As(err, &unreach):
		return CauseUnreachable
	}
	return CauseUnknown
}
