package runtime

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

// IsRetryable separates transient Google API failures from permanent ones.
// Timeouts, rate limits and server errors are transient, as is anything
// that never reached the API (network errors). Other 4xx responses such as
// bad request, auth failure or not found will not improve on retry.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return true
	}
	switch {
	case apiErr.Code == http.StatusRequestTimeout,
		apiErr.Code == http.StatusTooManyRequests,
		apiErr.Code >= http.StatusInternalServerError:
		return true
	case apiErr.Code == http.StatusForbidden:
		// Gmail and Sheets report quota exhaustion as 403 with a rate reason.
		for _, item := range apiErr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return true
			}
		}
	}
	return false
}

// StatusCode returns the HTTP status carried by a Google API error, or 0.
func StatusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
