package utils

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// maxErrorBodySize caps how much of an error response body is retained
const maxErrorBodySize = 64 << 10

// HTTPClientConfig holds configuration for HTTP client creation
type HTTPClientConfig struct {
	Timeout time.Duration
}

// NewHTTPClient creates a new HTTP client with the given configuration
func NewHTTPClient(config HTTPClientConfig) *http.Client {
	return &http.Client{
		Timeout: config.Timeout,
	}
}

// HTTPError is returned when a response was received with an error status.
// Body holds the (possibly truncated) response body. RequestBody is filled in
// by callers that want the outgoing payload attached to the error.
type HTTPError struct {
	StatusCode  int
	Status      string
	URL         string
	Body        []byte
	RequestBody []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (URL: %s)", e.StatusCode, e.Status, e.URL)
}

// CheckHTTPResponse returns an *HTTPError when resp has a 4xx or 5xx status.
// The response body is consumed in that case.
func CheckHTTPResponse(resp *http.Response, url string) error {
	if resp.StatusCode < 400 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		log.Printf("[HTTP] Failed to read error body from %s: %v", url, err)
	}

	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		URL:        url,
		Body:       body,
	}
}

// SafeCloseResponse closes the response body, logging any failure
func SafeCloseResponse(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		if err := resp.Body.Close(); err != nil {
			log.Printf("[HTTP] Warning: failed to close response body: %v", err)
		}
	}
}
