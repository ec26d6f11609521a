package presenters

import (
	"net/http"
	"time"

	"github.com/takutakahashi/adplatform-auth/pkg/tiktok"
)

// ConnectionResponse represents a stored connection in HTTP responses.
// Token ciphertext is never exposed.
type ConnectionResponse struct {
	Platform           string  `json:"platform" yaml:"platform"`
	Status             string  `json:"status" yaml:"status"`
	VerificationStatus string  `json:"verification_status,omitempty" yaml:"verification_status,omitempty"`
	AppID              string  `json:"app_id,omitempty" yaml:"app_id,omitempty"`
	HasAccessToken     bool    `json:"has_access_token" yaml:"has_access_token"`
	HasRefreshToken    bool    `json:"has_refresh_token" yaml:"has_refresh_token"`
	TokenExpiry        *string `json:"token_expiry,omitempty" yaml:"token_expiry,omitempty"`
	LastVerified       *string `json:"last_verified,omitempty" yaml:"last_verified,omitempty"`
}

// ConnectionListResponse represents the response of GET /connections
type ConnectionListResponse struct {
	Connections []*ConnectionResponse `json:"connections" yaml:"connections"`
}

// TokenResponse represents the outcome of a completed authorization or refresh
type TokenResponse struct {
	Platform    string `json:"platform" yaml:"platform"`
	Status      string `json:"status" yaml:"status"`
	TokenExpiry string `json:"token_expiry" yaml:"token_expiry"`
}

// ErrorResponse represents a failed request
type ErrorResponse struct {
	Error   string                   `json:"error"`
	Kind    tiktok.ErrorKind         `json:"kind,omitempty"`
	Details *tiktok.AuthErrorDetails `json:"details,omitempty"`
}

// ConnectionPresenter converts connection data into HTTP responses
type ConnectionPresenter struct{}

// NewConnectionPresenter creates a new ConnectionPresenter
func NewConnectionPresenter() *ConnectionPresenter {
	return &ConnectionPresenter{}
}

// PresentConnections converts records into a list ordered by platform
func (p *ConnectionPresenter) PresentConnections(records map[string]*tiktok.ConnectionRecord) *ConnectionListResponse {
	response := &ConnectionListResponse{Connections: make([]*ConnectionResponse, 0, len(records))}
	for _, platform := range tiktok.Platforms(records) {
		response.Connections = append(response.Connections, p.PresentConnection(platform, records[platform]))
	}
	return response
}

// PresentConnection converts one record
func (p *ConnectionPresenter) PresentConnection(platform string, record *tiktok.ConnectionRecord) *ConnectionResponse {
	status := record.Status
	if status == "" {
		status = tiktok.StatusDisconnected
	}
	return &ConnectionResponse{
		Platform:           platform,
		Status:             status,
		VerificationStatus: record.VerificationStatus,
		AppID:              record.AppID,
		HasAccessToken:     record.AccessToken != "",
		HasRefreshToken:    record.RefreshToken != "",
		TokenExpiry:        formatTime(record.TokenExpiry),
		LastVerified:       formatTime(record.LastVerified),
	}
}

// PresentToken converts a token bundle
func (p *ConnectionPresenter) PresentToken(platform string, bundle *tiktok.TokenBundle) *TokenResponse {
	return &TokenResponse{
		Platform:    platform,
		Status:      tiktok.StatusConnected,
		TokenExpiry: bundle.TokenExpiry.UTC().Format(time.RFC3339),
	}
}

// PresentAuthError returns the HTTP status and body for an AuthError
func (p *ConnectionPresenter) PresentAuthError(err *tiktok.AuthError) (int, *ErrorResponse) {
	details := err.Details
	// Never echo the outgoing payload back to the browser
	details.RequestData = nil

	return authErrorStatus(err), &ErrorResponse{
		Error:   err.Message,
		Kind:    err.Kind,
		Details: &details,
	}
}

func authErrorStatus(err *tiktok.AuthError) int {
	switch err.Kind {
	case tiktok.KindValidation:
		return http.StatusBadRequest
	case tiktok.KindUpstreamAPI:
		if err.Details.Status >= 400 && err.Details.Status < 500 && err.Details.Status != http.StatusNotFound {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	case tiktok.KindProtocol:
		return http.StatusBadGateway
	case tiktok.KindTransport:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
