package tiktok

import "time"

// Connection status values
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"

	VerificationVerified = "verified"
)

// Credentials identify the TikTok application. They are never persisted.
type Credentials struct {
	AppID        string
	ClientSecret string
	RedirectURI  string
}

// TokenBundle holds encrypted tokens and their absolute expiry
type TokenBundle struct {
	AccessToken  string    `json:"accessToken" yaml:"accessToken"`
	RefreshToken string    `json:"refreshToken" yaml:"refreshToken"`
	TokenExpiry  time.Time `json:"tokenExpiry" yaml:"tokenExpiry"`
}

// AuthState is the persisted form of a pending anti-forgery state
type AuthState struct {
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// ConnectionRecord is the typed view of one platform entry of the connection map.
// Token fields hold ciphertext.
type ConnectionRecord struct {
	AccessToken        string     `json:"accessToken,omitempty" yaml:"accessToken,omitempty"`
	RefreshToken       string     `json:"refreshToken,omitempty" yaml:"refreshToken,omitempty"`
	TokenExpiry        *time.Time `json:"tokenExpiry,omitempty" yaml:"tokenExpiry,omitempty"`
	AppID              string     `json:"appId,omitempty" yaml:"appId,omitempty"`
	Status             string     `json:"status,omitempty" yaml:"status,omitempty"`
	VerificationStatus string     `json:"verificationStatus,omitempty" yaml:"verificationStatus,omitempty"`
	LastVerified       *time.Time `json:"lastVerified,omitempty" yaml:"lastVerified,omitempty"`
}

// Connected reports whether the record has a live connection
func (r *ConnectionRecord) Connected() bool {
	return r.Status == StatusConnected
}

// ExpiresWithin reports whether the token expires before now+window.
// Records without an expiry never qualify.
func (r *ConnectionRecord) ExpiresWithin(now time.Time, window time.Duration) bool {
	if r.TokenExpiry == nil {
		return false
	}
	return r.TokenExpiry.Before(now.Add(window))
}

// tokenResponse is the body returned by the exchange and refresh endpoints.
// Every field is optional on the wire; presence is checked explicitly.
type tokenResponse struct {
	Code    *int   `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    *struct {
		AccessToken  *string `json:"access_token"`
		RefreshToken *string `json:"refresh_token"`
		ExpiresIn    *int64  `json:"expires_in"`
	} `json:"data"`
}

// exchangeRequest is sent to the exchange endpoint
type exchangeRequest struct {
	AppID        string `json:"app_id"`
	ClientSecret string `json:"client_secret"`
	AuthCode     string `json:"auth_code"`
	RedirectURI  string `json:"redirect_uri"`
	GrantType    string `json:"grant_type"`
}

// refreshRequest is sent to the refresh endpoint
type refreshRequest struct {
	AppID        string `json:"app_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}
