package mastodon

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failure response from the Mastodon API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("mastodon: status %d", e.StatusCode)
	}
	return fmt.Sprintf("mastodon: status %d: %s", e.StatusCode, e.Message)
}

// IsRateLimit reports whether err is a rate-limit response.
func IsRateLimit(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// IsAuth reports whether err is an authentication or authorization failure.
func IsAuth(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}
