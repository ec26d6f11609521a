package tiktok

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takutakahashi/adplatform-auth/pkg/crypto"
	"github.com/takutakahashi/adplatform-auth/pkg/utils"
)

func httpErr(status int, statusLine, body string) *utils.HTTPError {
	return &utils.HTTPError{
		StatusCode:  status,
		Status:      statusLine,
		URL:         "https://business-api.tiktok.com/open_api/v1.3/oauth2/access_token/",
		Body:        []byte(body),
		RequestBody: []byte(`{"app_id":"7123456789","secret":"s","auth_code":"c"}`),
	}
}

func TestNormalizeError_HTTPResponses(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"nested error message", httpErr(400, "400 Bad Request", `{"error":{"message":"nested"},"message":"top"}`), "nested"},
		{"top level message", httpErr(400, "400 Bad Request", `{"message":"top","error":"flat"}`), "top"},
		{"flat error", httpErr(401, "401 Unauthorized", `{"error":"flat"}`), "flat"},
		{"json without message", httpErr(500, "500 Internal Server Error", `{"code":1}`), MessageAuthFailed},
		{"404 text", httpErr(404, "404 Not Found", "404 page not found"), MessageEndpointNotFound},
		{"404 json without message", httpErr(404, "404 Not Found", `{}`), MessageEndpointNotFound},
		{"404 json with message", httpErr(404, "404 Not Found", `{"message":"advertiser missing"}`), "advertiser missing"},
		{"502 text", httpErr(502, "502 Bad Gateway", "upstream down"), "TikTok API Error (502): Bad Gateway"},
		{"empty body", httpErr(503, "503 Service Unavailable", ""), "TikTok API Error (503): Service Unavailable"},
		{"wrapped", fmt.Errorf("exchange: %w", httpErr(418, "418 I'm a teapot", "no")), "TikTok API Error (418): I'm a teapot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authErr := NormalizeError(tt.err, testNow)
			require.NotNil(t, authErr)
			assert.Equal(t, KindUpstreamAPI, authErr.Kind)
			assert.Equal(t, tt.message, authErr.Message)
			assert.Equal(t, "oauth2/access_token", authErr.Details.Endpoint)
			assert.Equal(t, testNow, authErr.Details.Timestamp)
			assert.NotZero(t, authErr.Details.Status)
			assert.NotEmpty(t, authErr.Details.URL)

			requestData, ok := authErr.Details.RequestData.(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, "7123456789", requestData["app_id"])
			assert.Equal(t, "[REDACTED]", requestData["secret"])
		})
	}
}

func TestNormalizeError_ParsedBodyAttached(t *testing.T) {
	authErr := NormalizeError(httpErr(400, "400 Bad Request", `{"message":"bad","code":40100}`), testNow)
	data, ok := authErr.Details.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "bad", data["message"])

	authErr = NormalizeError(httpErr(502, "502 Bad Gateway", "<html>"), testNow)
	assert.Nil(t, authErr.Details.Data)
}

func TestNormalizeError_Network(t *testing.T) {
	err := &NetworkError{URL: "http://localhost:8080/api/tiktok/exchange", Err: errors.New("connection refused")}

	authErr := NormalizeError(err, testNow)
	assert.Equal(t, KindTransport, authErr.Kind)
	assert.Equal(t, MessageNetworkError, authErr.Message)
	assert.Equal(t, err.URL, authErr.Details.URL)
	assert.Zero(t, authErr.Details.Status)
	assert.Equal(t, testNow, authErr.Details.Timestamp)
	assert.True(t, errors.Is(authErr, err.Err))

	authErr = NormalizeError(context.DeadlineExceeded, testNow)
	assert.Equal(t, KindTransport, authErr.Kind)
}

func TestNormalizeError_Other(t *testing.T) {
	authErr := NormalizeError(errors.New("boom"), testNow)
	assert.Equal(t, KindUnknown, authErr.Kind)
	assert.Equal(t, "boom", authErr.Message)
	assert.Equal(t, AuthErrorDetails{Timestamp: testNow}, authErr.Details)

	authErr = NormalizeError(errors.New(""), testNow)
	assert.Equal(t, MessageAuthFailed, authErr.Message)

	authErr = NormalizeError(&crypto.DecryptionError{Algorithm: crypto.AlgorithmAESGCM, Err: errors.New("message authentication failed")}, testNow)
	assert.Equal(t, KindDecryption, authErr.Kind)
}

func TestNormalizeError_Passthrough(t *testing.T) {
	original := NewAuthError(KindProtocol, MessageInvalidResponse, testNow)
	assert.Same(t, original, NormalizeError(original, testNow.Add(1)))
	assert.Nil(t, NormalizeError(nil, testNow))
}

func TestEndpointOf(t *testing.T) {
	assert.Equal(t, "oauth2/refresh_token", endpointOf("https://business-api.tiktok.com/open_api/v1.3/oauth2/refresh_token/"))
	assert.Equal(t, "exchange", endpointOf("http://localhost/exchange"))
	assert.Equal(t, "", endpointOf("://bad"))
}
