package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"k8s.io/utils/clock"

	"github.com/takutakahashi/adplatform-auth/internal/interfaces/presenters"
	"github.com/takutakahashi/adplatform-auth/pkg/tiktok"
)

// respondError writes err as JSON. Errors of the token lifecycle are
// normalized first so every failure carries a kind and details.
func respondError(ctx echo.Context, presenter *presenters.ConnectionPresenter, clk clock.PassiveClock, err error) error {
	if errors.Is(err, tiktok.ErrConnectionNotFound) {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}

	authErr := tiktok.NormalizeError(err, clk.Now())
	status, body := presenter.PresentAuthError(authErr)
	log.Printf("[HTTP] %s %s failed with %d (%s): %v", ctx.Request().Method, ctx.Path(), status, authErr.Kind, err)
	return ctx.JSON(status, body)
}
