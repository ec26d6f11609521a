package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"k8s.io/utils/clock"

	"github.com/takutakahashi/adplatform-auth/pkg/crypto"
	"github.com/takutakahashi/adplatform-auth/pkg/utils"
)

// TokenExchanger trades an authorization code for tokens
type TokenExchanger interface {
	ExchangeToken(ctx context.Context, code string, creds Credentials) (*TokenBundle, error)
}

// TokenRefresher trades a refresh token for a new token bundle
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string, creds Credentials) (*TokenBundle, error)
}

// ClientConfig holds the proxy endpoints the Client talks to
type ClientConfig struct {
	ExchangeEndpoint string
	RefreshEndpoint  string
	Timeout          time.Duration
}

// Client calls the exchange and refresh proxy endpoints.
// Tokens never leave the Client unencrypted.
type Client struct {
	httpClient       *http.Client
	cipher           crypto.Cipher
	clock            clock.PassiveClock
	exchangeEndpoint string
	refreshEndpoint  string
}

// NewClient creates a token client. A zero timeout means DefaultTimeout.
func NewClient(cfg ClientConfig, cipher crypto.Cipher, clk clock.PassiveClock) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient:       utils.NewHTTPClient(utils.HTTPClientConfig{Timeout: timeout}),
		cipher:           cipher,
		clock:            clk,
		exchangeEndpoint: cfg.ExchangeEndpoint,
		refreshEndpoint:  cfg.RefreshEndpoint,
	}
}

// ExchangeToken exchanges an authorization code for an encrypted token bundle
func (c *Client) ExchangeToken(ctx context.Context, code string, creds Credentials) (*TokenBundle, error) {
	if code == "" || creds.AppID == "" || creds.ClientSecret == "" {
		return nil, NewAuthError(KindValidation, "Missing required parameters", c.clock.Now())
	}

	log.Printf("[TIKTOK] Starting token exchange: app_id=%s code_prefix=%s", creds.AppID, codePrefix(code))

	bundle, err := c.requestTokens(ctx, c.exchangeEndpoint, exchangeRequest{
		AppID:        creds.AppID,
		ClientSecret: creds.ClientSecret,
		AuthCode:     code,
		RedirectURI:  creds.RedirectURI,
		GrantType:    GrantTypeAuthorizationCode,
	})
	if err != nil {
		log.Printf("[TIKTOK] Token exchange error: %v", err)
		return nil, err
	}
	return bundle, nil
}

// RefreshToken trades a plaintext refresh token for a new encrypted bundle
func (c *Client) RefreshToken(ctx context.Context, refreshToken string, creds Credentials) (*TokenBundle, error) {
	if refreshToken == "" || creds.AppID == "" || creds.ClientSecret == "" {
		return nil, NewAuthError(KindValidation, "Missing required parameters", c.clock.Now())
	}

	log.Printf("[TIKTOK] Starting token refresh: app_id=%s", creds.AppID)

	bundle, err := c.requestTokens(ctx, c.refreshEndpoint, refreshRequest{
		AppID:        creds.AppID,
		ClientSecret: creds.ClientSecret,
		RefreshToken: refreshToken,
	})
	if err != nil {
		log.Printf("[TIKTOK] Token refresh error: %v", err)
		return nil, err
	}
	return bundle, nil
}

// maxExpiresIn is the largest expires_in, in seconds, representable as a time.Duration
const maxExpiresIn = math.MaxInt64 / int64(time.Second)

func (c *Client) requestTokens(ctx context.Context, endpoint string, payload interface{}) (*TokenBundle, error) {
	resp, err := c.post(ctx, endpoint, payload)
	if err != nil {
		return nil, NormalizeError(err, c.clock.Now())
	}

	if resp.Data == nil ||
		resp.Data.AccessToken == nil || *resp.Data.AccessToken == "" ||
		resp.Data.RefreshToken == nil || *resp.Data.RefreshToken == "" ||
		resp.Data.ExpiresIn == nil || *resp.Data.ExpiresIn <= 0 || *resp.Data.ExpiresIn > maxExpiresIn {
		authErr := NewAuthError(KindProtocol, MessageInvalidResponse, c.clock.Now())
		authErr.Details.URL = endpoint
		authErr.Details.Endpoint = endpointOf(endpoint)
		if resp.Message != "" || resp.Code != nil {
			authErr.Details.Data = map[string]interface{}{"code": resp.Code, "message": resp.Message}
		}
		return nil, authErr
	}

	accessToken, err := c.cipher.Encrypt(ctx, *resp.Data.AccessToken)
	if err != nil {
		return nil, NormalizeError(fmt.Errorf("failed to encrypt access token: %w", err), c.clock.Now())
	}
	refreshToken, err := c.cipher.Encrypt(ctx, *resp.Data.RefreshToken)
	if err != nil {
		return nil, NormalizeError(fmt.Errorf("failed to encrypt refresh token: %w", err), c.clock.Now())
	}

	return &TokenBundle{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenExpiry:  c.clock.Now().Add(time.Duration(*resp.Data.ExpiresIn) * time.Second).UTC(),
	}, nil
}

// post sends payload as JSON and decodes a tokenResponse.
// Failures are *NetworkError, *utils.HTTPError or *AuthError.
func (c *Client) post(ctx context.Context, endpoint string, payload interface{}) (*tokenResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: endpoint, Err: err}
	}
	defer utils.SafeCloseResponse(resp)

	if err := utils.CheckHTTPResponse(resp, endpoint); err != nil {
		var httpErr *utils.HTTPError
		if errors.As(err, &httpErr) {
			httpErr.RequestBody = body
		}
		return nil, err
	}

	var result tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		authErr := NewAuthError(KindProtocol, MessageInvalidResponse, c.clock.Now())
		authErr.Details.Status = resp.StatusCode
		authErr.Details.URL = endpoint
		authErr.Err = err
		return nil, authErr
	}
	return &result, nil
}

// codePrefix shortens an authorization code for logging
func codePrefix(code string) string {
	runes := []rune(code)
	if len(runes) <= 10 {
		return string(runes[:len(runes)/2]) + "..."
	}
	return string(runes[:10]) + "..."
}
