// Package middleware writes the admission gate outcome onto HTTP responses.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"mailguard/internal/ratelimit/models"
	"mailguard/pkg/platform/httputil"
)

// RateLimitExceededResponse is the 429 body for a full rate window.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// QuotaExceededResponse is the 429 body for an exhausted monthly quota.
// ResetAt is epoch seconds, like X-RateLimit-Reset.
type QuotaExceededResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Current int    `json:"current"`
	Limit   int    `json:"limit"`
	ResetAt int64  `json:"reset_at"`
}

// AddRateLimitHeaders sets X-RateLimit-* on w. Reset is epoch seconds.
func AddRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if result.Degraded {
		w.Header().Set("X-RateLimit-Status", "degraded")
	}
}

// WriteRateLimitExceeded writes the 429 response for a denied rate check.
func WriteRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	AddRateLimitHeaders(w, result)
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests for this API key. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}

// WriteQuotaExceeded writes the 429 response for an exhausted monthly quota.
func WriteQuotaExceeded(w http.ResponseWriter, quota *models.QuotaResult) {
	retryAfter := int(time.Until(quota.ResetAt).Seconds())
	w.Header().Set("Retry-After", strconv.Itoa(max(1, retryAfter)))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &QuotaExceededResponse{
		Error:   "quota_exceeded",
		Message: "Monthly validation quota exhausted.",
		Current: quota.Current,
		Limit:   quota.Limit,
		ResetAt: quota.ResetAt.Unix(),
	})
}
