package controllers

import (
	"log"

	"github.com/labstack/echo/v4"
)

// MainController manages all application routes and controllers
type MainController struct {
	healthController     *HealthController
	tiktokController     *TikTokController
	connectionController *ConnectionController
}

// NewMainController creates a new main controller instance
func NewMainController(
	healthController *HealthController,
	tiktokController *TikTokController,
	connectionController *ConnectionController,
) *MainController {
	return &MainController{
		healthController:     healthController,
		tiktokController:     tiktokController,
		connectionController: connectionController,
	}
}

// RegisterRoutes registers all application routes.
// The token proxy endpoints are registered by pkg/proxy.
func (mc *MainController) RegisterRoutes(e *echo.Echo) {
	mc.healthController.RegisterRoutes(e)
	mc.tiktokController.RegisterRoutes(e)
	mc.connectionController.RegisterRoutes(e)

	log.Printf("[HTTP] Registered routes of %s, %s and %s",
		mc.healthController.GetName(), mc.tiktokController.GetName(), mc.connectionController.GetName())
}
