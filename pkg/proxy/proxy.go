package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/takutakahashi/adplatform-auth/pkg/config"
	"github.com/takutakahashi/adplatform-auth/pkg/tiktok"
	"github.com/takutakahashi/adplatform-auth/pkg/utils"
)

// maxBodySize caps request bodies and relayed upstream responses
const maxBodySize = 1 << 20

// Route paths of the forwarding endpoints
const (
	ExchangePath = "/api/tiktok/exchange"
	RefreshPath  = "/api/tiktok/refresh"
)

// Proxy forwards token requests to the TikTok OAuth API so the client secret
// never reaches it from the user agent
type Proxy struct {
	apiBase    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    echo.MiddlewareFunc
}

// NewProxy creates a new proxy instance
func NewProxy(cfg config.TikTokConfig) *Proxy {
	apiBase := strings.TrimSuffix(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = tiktok.DefaultAPIBase
	}
	timeout := cfg.ProxyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	p := &Proxy{
		apiBase:    apiBase,
		timeout:    timeout,
		httpClient: utils.NewHTTPClient(utils.HTTPClientConfig{Timeout: timeout}),
	}
	if cfg.ProxyRateLimit > 0 {
		p.limiter = newRateLimiter(cfg.ProxyRateLimit, cfg.ProxyRateBurst)
	}
	return p
}

// newRateLimiter limits requests per client IP
func newRateLimiter(limit float64, burst int) echo.MiddlewareFunc {
	if burst <= 0 {
		burst = 1
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(limit),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Unable to identify client"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			log.Printf("[PROXY] Rate limit exceeded for %s", identifier)
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many requests"})
		},
	})
}

// RegisterRoutes registers the forwarding endpoints. Every method is routed
// so the handlers can answer preflight and reject other methods themselves.
func (p *Proxy) RegisterRoutes(e *echo.Echo) {
	var mws []echo.MiddlewareFunc
	if p.limiter != nil {
		mws = append(mws, p.limiter)
	}
	e.Any(ExchangePath, p.HandleExchange, mws...)
	e.Any(RefreshPath, p.HandleRefresh, mws...)
	log.Printf("[PROXY] Registered %s and %s -> %s", ExchangePath, RefreshPath, p.apiBase)
}

// exchangeBody is accepted by HandleExchange
type exchangeBody struct {
	AuthCode     string `json:"auth_code"`
	AppID        string `json:"app_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
	GrantType    string `json:"grant_type"`
}

// refreshBody is accepted by HandleRefresh
type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
	AppID        string `json:"app_id"`
	ClientSecret string `json:"client_secret"`
}

// HandleExchange handles /api/tiktok/exchange
func (p *Proxy) HandleExchange(c echo.Context) error {
	if done, err := p.preflight(c); done {
		return err
	}

	var body exchangeBody
	if err := bindJSON(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if body.AuthCode == "" || body.AppID == "" || body.ClientSecret == "" || body.RedirectURI == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing required parameters"})
	}

	grantType := body.GrantType
	if grantType == "" {
		grantType = tiktok.GrantTypeAuthorizationCode
	}

	log.Printf("[PROXY] Forwarding token exchange for app %s", body.AppID)
	return p.forward(c, tiktok.TokenPath, map[string]string{
		"app_id":       body.AppID,
		"secret":       body.ClientSecret,
		"auth_code":    body.AuthCode,
		"grant_type":   grantType,
		"redirect_uri": body.RedirectURI,
	}, "Failed to exchange token")
}

// HandleRefresh handles /api/tiktok/refresh
func (p *Proxy) HandleRefresh(c echo.Context) error {
	if done, err := p.preflight(c); done {
		return err
	}

	var body refreshBody
	if err := bindJSON(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if body.RefreshToken == "" || body.AppID == "" || body.ClientSecret == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing required parameters"})
	}

	log.Printf("[PROXY] Forwarding token refresh for app %s", body.AppID)
	return p.forward(c, tiktok.RefreshPath, map[string]string{
		"app_id":        body.AppID,
		"secret":        body.ClientSecret,
		"refresh_token": body.RefreshToken,
	}, "Failed to refresh token")
}

// preflight sets CORS headers and answers OPTIONS and unsupported methods.
// It reports whether the request has been fully handled.
func (p *Proxy) preflight(c echo.Context) (bool, error) {
	h := c.Response().Header()
	h.Set(echo.HeaderAccessControlAllowOrigin, "*")
	h.Set(echo.HeaderAccessControlAllowHeaders, echo.HeaderContentType)
	h.Set(echo.HeaderAccessControlAllowMethods, "POST, OPTIONS")

	switch c.Request().Method {
	case http.MethodOptions:
		return true, c.NoContent(http.StatusNoContent)
	case http.MethodPost:
		return false, nil
	default:
		return true, c.JSON(http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	}
}

// bindJSON decodes the request body into v. An empty body decodes as {}.
func bindJSON(c echo.Context, v interface{}) error {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize+1))
	if err != nil {
		return err
	}
	if len(data) > maxBodySize {
		return fmt.Errorf("request body exceeds %d bytes", maxBodySize)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// forward posts payload to path on the API base and relays the outcome
func (p *Proxy) forward(c echo.Context, path string, payload map[string]string, fallback string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return internalError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), p.timeout)
	defer cancel()

	target := p.apiBase + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return internalError(c, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Printf("[PROXY] No response from %s: %v", target, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fallback})
	}
	defer utils.SafeCloseResponse(resp)

	if err := utils.CheckHTTPResponse(resp, target); err != nil {
		var httpErr *utils.HTTPError
		if !errors.As(err, &httpErr) {
			return internalError(c, err)
		}
		log.Printf("[PROXY] Upstream %s returned %d", target, httpErr.StatusCode)
		return c.JSON(httpErr.StatusCode, upstreamError(httpErr.Body, fallback))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return internalError(c, fmt.Errorf("failed to read upstream response: %w", err))
	}
	if len(body) > maxBodySize {
		log.Printf("[PROXY] Upstream %s response exceeds %d bytes", target, maxBodySize)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": fallback})
	}
	return c.JSONBlob(http.StatusOK, body)
}

// upstreamError reshapes an upstream error body as {error, details}
func upstreamError(body []byte, fallback string) map[string]interface{} {
	result := map[string]interface{}{"error": fallback}

	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		if len(body) > 0 {
			result["details"] = string(body)
		}
		return result
	}

	result["details"] = parsed
	if obj, ok := parsed.(map[string]interface{}); ok {
		if message, ok := obj["message"].(string); ok && message != "" {
			result["error"] = message
		}
	}
	return result
}

func internalError(c echo.Context, err error) error {
	log.Printf("[PROXY] Internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error":   "Internal server error",
		"message": err.Error(),
	})
}
