package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/takutakahashi/adplatform-auth/pkg/storage"
	"github.com/takutakahashi/adplatform-auth/pkg/tiktok"
)

// HealthController handles health check endpoints
type HealthController struct {
	store storage.Store
}

// NewHealthController creates a new HealthController instance.
// A nil store skips the storage probe.
func NewHealthController(store storage.Store) *HealthController {
	return &HealthController{store: store}
}

// GetName returns the name of this controller for logging
func (c *HealthController) GetName() string {
	return "HealthController"
}

// RegisterRoutes registers health routes
func (c *HealthController) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", c.HealthCheck)
}

// HealthCheck handles GET /health requests to check server health
func (c *HealthController) HealthCheck(ctx echo.Context) error {
	if c.store != nil {
		probeCtx, cancel := context.WithTimeout(ctx.Request().Context(), 5*time.Second)
		defer cancel()

		if _, err := c.store.Get(probeCtx, tiktok.ConnectionsStorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Printf("[HTTP] Health check storage probe failed: %v", err)
			return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"storage": err.Error(),
			})
		}
	}

	return ctx.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
