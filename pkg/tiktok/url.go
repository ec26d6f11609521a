package tiktok

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// AuthURLBuilder builds the authorization redirect URL
type AuthURLBuilder struct {
	states  *StateManager
	authURL string
	scopes  []string
}

// NewAuthURLBuilder creates an AuthURLBuilder. Empty values fall back to the defaults.
func NewAuthURLBuilder(states *StateManager, authURL string, scopes []string) *AuthURLBuilder {
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &AuthURLBuilder{
		states:  states,
		authURL: authURL,
		scopes:  scopes,
	}
}

// AuthURL generates a new state and returns the authorization URL carrying it
func (b *AuthURLBuilder) AuthURL(ctx context.Context, appID, redirectURI string) (string, error) {
	if appID == "" {
		return "", errors.New("app ID is required")
	}

	state, err := b.states.GenerateAuthState(ctx)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("app_id", appID)
	params.Set("redirect_uri", redirectURI)
	params.Set("state", state)
	params.Set("scope", strings.Join(b.scopes, ","))
	params.Set("response_type", "code")

	return b.authURL + "?" + params.Encode(), nil
}
