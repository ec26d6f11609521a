package controllers

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"k8s.io/utils/clock"

	"github.com/takutakahashi/adplatform-auth/internal/interfaces/presenters"
	"github.com/takutakahashi/adplatform-auth/pkg/tiktok"
)

// AuthURLProvider builds authorization URLs
type AuthURLProvider interface {
	AuthURL(ctx context.Context, appID, redirectURI string) (string, error)
}

// StateValidator consumes a pending authorization state
type StateValidator interface {
	ValidateState(ctx context.Context, candidate string) bool
}

// Connector completes an authorization
type Connector interface {
	Connect(ctx context.Context, code string, creds tiktok.Credentials) (*tiktok.TokenBundle, error)
}

// TikTokController handles the browser side of the TikTok authorization flow
type TikTokController struct {
	urls      AuthURLProvider
	states    StateValidator
	connector Connector
	creds     tiktok.Credentials
	presenter *presenters.ConnectionPresenter
	clock     clock.PassiveClock
}

// NewTikTokController creates a new TikTokController instance
func NewTikTokController(
	urls AuthURLProvider,
	states StateValidator,
	connector Connector,
	creds tiktok.Credentials,
	presenter *presenters.ConnectionPresenter,
	clk clock.PassiveClock,
) *TikTokController {
	return &TikTokController{
		urls:      urls,
		states:    states,
		connector: connector,
		creds:     creds,
		presenter: presenter,
		clock:     clk,
	}
}

// GetName returns the name of this controller for logging
func (c *TikTokController) GetName() string {
	return "TikTokController"
}

// RegisterRoutes registers TikTok authorization routes
func (c *TikTokController) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/tiktok")
	g.GET("/auth-url", c.GetAuthURL)
	g.GET("/callback", c.Callback)
}

// GetAuthURL handles GET /tiktok/auth-url
func (c *TikTokController) GetAuthURL(ctx echo.Context) error {
	if c.creds.AppID == "" || c.creds.RedirectURI == "" {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "TikTok application is not configured",
		})
	}

	authURL, err := c.urls.AuthURL(ctx.Request().Context(), c.creds.AppID, c.creds.RedirectURI)
	if err != nil {
		log.Printf("[TIKTOK] Failed to build authorization URL: %v", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to build authorization URL"})
	}

	return ctx.JSON(http.StatusOK, map[string]string{"url": authURL})
}

// Callback handles GET /tiktok/callback, the redirect target of the authorization page
func (c *TikTokController) Callback(ctx echo.Context) error {
	if denied := ctx.QueryParam("error"); denied != "" {
		message := ctx.QueryParam("error_description")
		if message == "" {
			message = denied
		}
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": message})
	}

	if !c.states.ValidateState(ctx.Request().Context(), ctx.QueryParam("state")) {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid or expired state"})
	}

	code := ctx.QueryParam("code")
	if code == "" {
		code = ctx.QueryParam("auth_code")
	}
	if code == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Missing authorization code"})
	}

	bundle, err := c.connector.Connect(ctx.Request().Context(), code, c.creds)
	if err != nil {
		return respondError(ctx, c.presenter, c.clock, err)
	}

	return ctx.JSON(http.StatusOK, c.presenter.PresentToken(tiktok.Platform, bundle))
}
