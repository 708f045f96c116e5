package extractor

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable = errors.New("backend not configured")
	ErrAuth        = errors.New("authentication failed")
	ErrRateLimited = errors.New("rate limited")
	ErrService     = errors.New("service error")

	ErrResponseTooLarge = errors.New("response too large")
)

// HTTPError is a non-200 answer from the service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Sprintf("authentication failed: %s", e.Body)
	case http.StatusTooManyRequests:
		return fmt.Sprintf("rate limited: %s", e.Body)
	default:
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	}
}

// Unwrap classifies the status so callers can match with errors.Is.
func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrService
	}
}
