package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/takutakahashi/adplatform-auth/pkg/crypto"
	"github.com/takutakahashi/adplatform-auth/pkg/utils"
)

// ErrorKind classifies an AuthError
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindProtocol    ErrorKind = "protocol"
	KindTransport   ErrorKind = "transport"
	KindUpstreamAPI ErrorKind = "upstream_api"
	KindDecryption  ErrorKind = "decryption"
	KindUnknown     ErrorKind = "unknown"
)

// Fixed messages
const (
	MessageAuthFailed       = "Authentication failed"
	MessageInvalidResponse  = "Invalid response from TikTok API"
	MessageNetworkError     = "Network error while connecting to TikTok API"
	MessageEndpointNotFound = "TikTok API endpoint not found. Please verify the API endpoint and your network connection."
)

const redacted = "[REDACTED]"

// AuthErrorDetails carries diagnostic context. Timestamp is always set.
type AuthErrorDetails struct {
	Status      int         `json:"status,omitempty"`
	StatusText  string      `json:"statusText,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	URL         string      `json:"url,omitempty"`
	Endpoint    string      `json:"endpoint,omitempty"`
	RequestData interface{} `json:"requestData,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// AuthError is the single error type surfaced by the token lifecycle
type AuthError struct {
	Kind    ErrorKind        `json:"kind"`
	Message string           `json:"message"`
	Details AuthErrorDetails `json:"details"`
	Err     error            `json:"-"`
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates an AuthError stamped with now
func NewAuthError(kind ErrorKind, message string, now time.Time) *AuthError {
	return &AuthError{
		Kind:    kind,
		Message: message,
		Details: AuthErrorDetails{Timestamp: now},
	}
}

// NetworkError reports a request that produced no response, including timeouts
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NormalizeError converts any failure of the token lifecycle into an *AuthError.
// An *AuthError is returned unchanged.
func NormalizeError(err error, now time.Time) *AuthError {
	if err == nil {
		return nil
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	var httpErr *utils.HTTPError
	if errors.As(err, &httpErr) {
		return normalizeHTTPError(httpErr, err, now)
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		log.Printf("[TIKTOK] Network error: url=%s err=%v", netErr.URL, netErr.Err)
		return &AuthError{
			Kind:    KindTransport,
			Message: MessageNetworkError,
			Details: AuthErrorDetails{URL: netErr.URL, Timestamp: now},
			Err:     err,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &AuthError{
			Kind:    KindTransport,
			Message: MessageNetworkError,
			Details: AuthErrorDetails{Timestamp: now},
			Err:     err,
		}
	}

	kind := KindUnknown
	var decErr *crypto.DecryptionError
	if errors.As(err, &decErr) {
		kind = KindDecryption
	}

	message := err.Error()
	if message == "" {
		message = MessageAuthFailed
	}
	return &AuthError{
		Kind:    kind,
		Message: message,
		Details: AuthErrorDetails{Timestamp: now},
		Err:     err,
	}
}

func normalizeHTTPError(httpErr *utils.HTTPError, err error, now time.Time) *AuthError {
	details := AuthErrorDetails{
		Status:      httpErr.StatusCode,
		StatusText:  statusText(httpErr.StatusCode, httpErr.Status),
		URL:         httpErr.URL,
		Endpoint:    endpointOf(httpErr.URL),
		RequestData: requestData(httpErr.RequestBody),
		Timestamp:   now,
	}

	log.Printf("[TIKTOK] API error: status=%d endpoint=%s", details.Status, details.Endpoint)

	var body map[string]interface{}
	if jsonErr := json.Unmarshal(httpErr.Body, &body); jsonErr == nil && body != nil {
		details.Data = body
		if message := apiErrorMessage(body); message != "" {
			return &AuthError{Kind: KindUpstreamAPI, Message: message, Details: details, Err: err}
		}
		if httpErr.StatusCode != http.StatusNotFound {
			return &AuthError{Kind: KindUpstreamAPI, Message: MessageAuthFailed, Details: details, Err: err}
		}
	}

	if httpErr.StatusCode == http.StatusNotFound {
		return &AuthError{Kind: KindUpstreamAPI, Message: MessageEndpointNotFound, Details: details, Err: err}
	}

	return &AuthError{
		Kind:    KindUpstreamAPI,
		Message: fmt.Sprintf("TikTok API Error (%d): %s", httpErr.StatusCode, details.StatusText),
		Details: details,
		Err:     err,
	}
}

// apiErrorMessage picks error.message, then message, then error
func apiErrorMessage(body map[string]interface{}) string {
	if nested, ok := body["error"].(map[string]interface{}); ok {
		if message, ok := nested["message"].(string); ok && message != "" {
			return message
		}
	}
	if message, ok := body["message"].(string); ok && message != "" {
		return message
	}
	if message, ok := body["error"].(string); ok && message != "" {
		return message
	}
	return ""
}

// statusText strips the numeric prefix from a Go status line such as "404 Not Found"
func statusText(code int, status string) string {
	prefix := strconv.Itoa(code) + " "
	if strings.HasPrefix(status, prefix) {
		return status[len(prefix):]
	}
	if status != "" {
		return status
	}
	return http.StatusText(code)
}

// endpointOf returns the last two path segments of rawURL
func endpointOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) > 2 {
		segments = segments[len(segments)-2:]
	}
	return strings.Join(segments, "/")
}

// requestData parses the outgoing payload and redacts secrets
func requestData(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	for _, key := range []string{"client_secret", "secret", "refresh_token", "auth_code"} {
		if _, ok := payload[key]; ok {
			payload[key] = redacted
		}
	}
	return payload
}
