package tiktok

import "time"

const (
	// Platform is the key of TikTok records in the connection map
	Platform = "tiktok"

	DefaultAPIBase = "https://business-api.tiktok.com/open_api/v1.3"
	DefaultAuthURL = "https://business-api.tiktok.com/portal/auth"
	DefaultTimeout = 15 * time.Second

	// Upstream OAuth paths, relative to the API base
	TokenPath   = "/oauth2/access_token/"
	RefreshPath = "/oauth2/refresh_token/"

	StateStorageKey       = "tiktokAuthState"
	ConnectionsStorageKey = "adPlatformConnections"

	// StateExpiry is how long a generated state stays acceptable
	StateExpiry = 5 * time.Minute

	GrantTypeAuthorizationCode = "authorization_code"
)

// DefaultScopes are requested on the authorization URL
var DefaultScopes = []string{"user.info", "ad.read", "ad.write"}
