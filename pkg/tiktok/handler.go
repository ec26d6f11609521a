package tiktok

import (
	"context"
	"fmt"
	"log"

	"k8s.io/utils/clock"

	"github.com/takutakahashi/adplatform-auth/pkg/storage"
)

// AuthHandler completes an authorization: it exchanges the code and records
// the resulting connection
type AuthHandler struct {
	exchanger TokenExchanger
	store     storage.Store
	clock     clock.PassiveClock
}

// NewAuthHandler creates an AuthHandler
func NewAuthHandler(exchanger TokenExchanger, store storage.Store, clk clock.PassiveClock) *AuthHandler {
	return &AuthHandler{
		exchanger: exchanger,
		store:     store,
		clock:     clk,
	}
}

// HandleAuth exchanges code and merges the tokens into the TikTok connection record.
// When the exchange fails the stored connections are not touched and its error is
// returned as is.
func (h *AuthHandler) HandleAuth(ctx context.Context, code string, creds Credentials) (*TokenBundle, error) {
	log.Printf("[TIKTOK] Processing auth: app_id=%s code_prefix=%s", creds.AppID, codePrefix(code))

	bundle, err := h.exchanger.ExchangeToken(ctx, code, creds)
	if err != nil {
		return nil, err
	}

	fields := bundleFields(bundle)
	fields["appId"] = creds.AppID
	fields["status"] = StatusConnected
	fields["verificationStatus"] = VerificationVerified
	fields["lastVerified"] = h.clock.Now().UTC()

	if err := mergeConnection(ctx, h.store, Platform, fields); err != nil {
		return nil, fmt.Errorf("failed to store connection: %w", err)
	}

	return bundle, nil
}
