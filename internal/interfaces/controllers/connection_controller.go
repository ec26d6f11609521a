package controllers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"k8s.io/utils/clock"

	"github.com/takutakahashi/adplatform-auth/internal/interfaces/presenters"
	"github.com/takutakahashi/adplatform-auth/pkg/tiktok"
)

// ConnectionManager manages stored platform connections
type ConnectionManager interface {
	List(ctx context.Context) (map[string]*tiktok.ConnectionRecord, error)
	Refresh(ctx context.Context, platform string, creds tiktok.Credentials) (*tiktok.TokenBundle, error)
	Disconnect(ctx context.Context, platform string) error
}

// ConnectionController exposes stored connections
type ConnectionController struct {
	connections ConnectionManager
	creds       tiktok.Credentials
	presenter   *presenters.ConnectionPresenter
	clock       clock.PassiveClock
}

// NewConnectionController creates a new ConnectionController instance
func NewConnectionController(
	connections ConnectionManager,
	creds tiktok.Credentials,
	presenter *presenters.ConnectionPresenter,
	clk clock.PassiveClock,
) *ConnectionController {
	return &ConnectionController{
		connections: connections,
		creds:       creds,
		presenter:   presenter,
		clock:       clk,
	}
}

// GetName returns the name of this controller for logging
func (c *ConnectionController) GetName() string {
	return "ConnectionController"
}

// RegisterRoutes registers connection routes
func (c *ConnectionController) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/connections")
	g.GET("", c.ListConnections)
	g.POST("/:platform/refresh", c.RefreshConnection)
	g.DELETE("/:platform", c.DeleteConnection)
}

// ListConnections handles GET /connections
func (c *ConnectionController) ListConnections(ctx echo.Context) error {
	records, err := c.connections.List(ctx.Request().Context())
	if err != nil {
		return respondError(ctx, c.presenter, c.clock, err)
	}
	return ctx.JSON(http.StatusOK, c.presenter.PresentConnections(records))
}

// RefreshConnection handles POST /connections/:platform/refresh
func (c *ConnectionController) RefreshConnection(ctx echo.Context) error {
	platform := ctx.Param("platform")
	bundle, err := c.connections.Refresh(ctx.Request().Context(), platform, c.creds)
	if err != nil {
		return respondError(ctx, c.presenter, c.clock, err)
	}
	return ctx.JSON(http.StatusOK, c.presenter.PresentToken(platform, bundle))
}

// DeleteConnection handles DELETE /connections/:platform
func (c *ConnectionController) DeleteConnection(ctx echo.Context) error {
	if err := c.connections.Disconnect(ctx.Request().Context(), ctx.Param("platform")); err != nil {
		return respondError(ctx, c.presenter, c.clock, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}
