// Package utils provides common utility functions.
package utils

import "net/http"

const defaultUserAgent = "notecrawl/1.0"

// HTTPHelper provides HTTP utility functions.
type HTTPHelper struct {
	userAgent string
}

// NewHTTPHelper creates a new HTTP helper. An empty userAgent falls back to
// the crawler default.
func NewHTTPHelper(userAgent string) *HTTPHelper {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &HTTPHelper{userAgent: userAgent}
}

// BuildHeaders creates HTTP headers for JSON API calls.
func (h *HTTPHelper) BuildHeaders(customHeaders map[string]string) http.Header {
	headers := http.Header{}

	headers.Set("User-Agent", h.userAgent)
	headers.Set("Accept", "application/json")

	for key, value := range customHeaders {
		headers.Set(key, value)
	}

	return headers
}

// IsSuccess reports whether status is a 2xx code.
func (h *HTTPHelper) IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
