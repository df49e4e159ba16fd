package twitter

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a provider error at the boundary where the raw HTTP
// response is parsed. Callers branch on the kind, never on message text.
type ErrorKind int

const (
	// KindOther covers provider rejections that are neither throttling nor
	// an authentication failure (revoked apps, malformed requests, 5xx).
	KindOther ErrorKind = iota
	// KindRateLimited means the provider is throttling us.
	KindRateLimited
	// KindUnauthorized means the token was rejected as invalid or expired.
	KindUnauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "other"
	}
}

// APIError is a classified error from the Twitter API.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("twitter: %s (status %d)", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("twitter: %s (status %d): %s", e.Kind, e.StatusCode, e.Detail)
}

// classifyStatus maps an HTTP status code onto an ErrorKind.
func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindUnauthorized
	default:
		return KindOther
	}
}

// IsRateLimited reports whether err is a provider throttling response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindRateLimited
}

// IsUnauthorized reports whether err is a provider authentication rejection.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindUnauthorized
}

// IsProviderError reports whether err carries a classified provider response.
// Errors that never reached the provider (transport failures, timeouts) are
// not provider errors.
func IsProviderError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
