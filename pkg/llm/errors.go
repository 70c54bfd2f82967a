package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError is a classified provider failure.
type APIError struct {
	Provider   Provider
	Model      string
	Status     int    // HTTP status code
	Code       string // provider status string, e.g. "RESOURCE_EXHAUSTED", "insufficient_quota"
	Message    string
	RetryAfter time.Duration // 0 when the provider gave no hint
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d %s: %s", e.Provider, e.Model, e.Status, e.Code, e.Message)
}

// IsRateLimited reports whether err is a transient throttle: the same model
// is worth retrying after a backoff.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if IsQuotaExhausted(err) {
		return false
	}
	return apiErr.Status == http.StatusTooManyRequests || apiErr.Status == http.StatusServiceUnavailable
}

// IsQuotaExhausted reports whether err is a definitive daily-quota signal:
// retrying the same model is pointless and the caller should advance to the
// next model in its chain.
func IsQuotaExhausted(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == "insufficient_quota" {
		return true
	}
	if apiErr.Code == "RESOURCE_EXHAUSTED" && containsQuotaMarker(apiErr.Message) {
		return true
	}
	return apiErr.Status == http.StatusTooManyRequests && containsQuotaMarker(apiErr.Message)
}

// RetryAfterHint extracts the provider's retry-after suggestion, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.RetryAfter <= 0 {
		return 0, false
	}
	return apiErr.RetryAfter, true
}

func containsQuotaMarker(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range []string{"quota", "daily limit", "billing"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// parseRetryAfterHeader handles both delta-seconds and HTTP-date forms.
func parseRetryAfterHeader(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
