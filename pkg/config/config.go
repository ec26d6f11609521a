package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding configuration keys.
// ADAUTH_TIKTOK_APP_ID overrides tiktok.app_id.
const EnvPrefix = "ADAUTH"

// Config represents the service configuration
type Config struct {
	Server     ServerConfig     `json:"server" mapstructure:"server"`
	TikTok     TikTokConfig     `json:"tiktok" mapstructure:"tiktok"`
	Encryption EncryptionConfig `json:"encryption" mapstructure:"encryption"`
	Storage    StorageConfig    `json:"storage" mapstructure:"storage"`
	Refresh    RefreshConfig    `json:"refresh" mapstructure:"refresh"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string `json:"port" mapstructure:"port"`
}

// TikTokConfig holds the TikTok application identity and endpoints
type TikTokConfig struct {
	AppID        string `json:"app_id" mapstructure:"app_id"`
	ClientSecret string `json:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string `json:"redirect_uri" mapstructure:"redirect_uri"`

	// APIBase is the upstream OAuth token service the proxy forwards to
	APIBase string   `json:"api_base" mapstructure:"api_base"`
	AuthURL string   `json:"auth_url" mapstructure:"auth_url"`
	Scopes  []string `json:"scopes" mapstructure:"scopes"`

	// ExchangeEndpoint and RefreshEndpoint are the proxy endpoints the token client calls
	ExchangeEndpoint string `json:"exchange_endpoint" mapstructure:"exchange_endpoint"`
	RefreshEndpoint  string `json:"refresh_endpoint" mapstructure:"refresh_endpoint"`

	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	ProxyTimeout time.Duration `json:"proxy_timeout" mapstructure:"proxy_timeout"`

	// ProxyRateLimit is the per client request rate of the proxy endpoints in
	// requests per second. Zero disables limiting.
	ProxyRateLimit float64 `json:"proxy_rate_limit" mapstructure:"proxy_rate_limit"`
	ProxyRateBurst int     `json:"proxy_rate_burst" mapstructure:"proxy_rate_burst"`
}

// EncryptionConfig selects the cipher used for tokens at rest
type EncryptionConfig struct {
	Secret    string `json:"secret" mapstructure:"secret"`
	KeyFile   string `json:"key_file" mapstructure:"key_file"`
	KMSKeyID  string `json:"kms_key_id" mapstructure:"kms_key_id"`
	KMSRegion string `json:"kms_region" mapstructure:"kms_region"`
}

// StorageConfig holds configuration for storage backends
type StorageConfig struct {
	Type       string           `json:"type" mapstructure:"type"` // "memory", "file", "s3", "kubernetes"
	FilePath   string           `json:"file_path" mapstructure:"file_path"`
	S3         S3Config         `json:"s3" mapstructure:"s3"`
	Kubernetes KubernetesConfig `json:"kubernetes" mapstructure:"kubernetes"`
}

// S3Config holds S3 storage settings
type S3Config struct {
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	Region    string `json:"region" mapstructure:"region"`
	Prefix    string `json:"prefix" mapstructure:"prefix"`
	Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
	AccessKey string `json:"access_key" mapstructure:"access_key"`
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`
}

// KubernetesConfig holds Kubernetes Secret storage settings
type KubernetesConfig struct {
	Namespace  string `json:"namespace" mapstructure:"namespace"`
	SecretName string `json:"secret_name" mapstructure:"secret_name"`
	Kubeconfig string `json:"kubeconfig" mapstructure:"kubeconfig"`
}

// RefreshConfig controls the scheduled token refresh
type RefreshConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Schedule string        `json:"schedule" mapstructure:"schedule"`
	Window   time.Duration `json:"window" mapstructure:"window"`

	// LeaderElection runs the refresher on one replica only, using a Lease
	// in storage.kubernetes.namespace
	LeaderElection bool   `json:"leader_election" mapstructure:"leader_election"`
	LeaseName      string `json:"lease_name" mapstructure:"lease_name"`
}

var defaults = map[string]interface{}{
	"server.port": "8080",

	"tiktok.app_id":            "",
	"tiktok.client_secret":     "",
	"tiktok.redirect_uri":      "",
	"tiktok.api_base":          "https://business-api.tiktok.com/open_api/v1.3",
	"tiktok.auth_url":          "https://business-api.tiktok.com/portal/auth",
	"tiktok.scopes":            []string{"user.info", "ad.read", "ad.write"},
	"tiktok.exchange_endpoint": "http://localhost:8080/api/tiktok/exchange",
	"tiktok.refresh_endpoint":  "http://localhost:8080/api/tiktok/refresh",
	"tiktok.timeout":           "15s",
	"tiktok.proxy_timeout":     "10s",
	"tiktok.proxy_rate_limit":  5,
	"tiktok.proxy_rate_burst":  10,

	"encryption.secret":     "",
	"encryption.key_file":   "",
	"encryption.kms_key_id": "",
	"encryption.kms_region": "",

	"storage.type":                   "memory",
	"storage.file_path":              "./connections.json",
	"storage.s3.bucket":              "",
	"storage.s3.region":              "us-east-1",
	"storage.s3.prefix":              "adplatform-auth/",
	"storage.s3.endpoint":            "",
	"storage.s3.access_key":          "",
	"storage.s3.secret_key":          "",
	"storage.kubernetes.namespace":   "default",
	"storage.kubernetes.secret_name": "adplatform-auth-store",
	"storage.kubernetes.kubeconfig":  "",

	"refresh.enabled":         false,
	"refresh.schedule":        "*/15 * * * *",
	"refresh.window":          "1h",
	"refresh.leader_election": false,
	"refresh.lease_name":      "adplatform-auth-refresh",
}

// NewViper returns a viper instance with defaults and environment binding applied
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads configuration from filename (JSON, YAML or TOML) and the environment.
// An empty filename loads defaults and environment variables only.
func LoadConfig(filename string) (*Config, error) {
	return LoadConfigWithViper(NewViper(), filename)
}

// LoadConfigWithViper is LoadConfig on a caller supplied viper instance,
// so command line flags bound to v take part in resolution
func LoadConfigWithViper(v *viper.Viper, filename string) (*Config, error) {
	if filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
		}
		log.Printf("[CONFIG] Loaded configuration from %s", filename)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration built from defaults only
func DefaultConfig() *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Printf("[CONFIG] Failed to decode defaults: %v", err)
	}
	return &cfg
}

// Validate checks values that have no usable fallback
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "memory", "file", "s3", "kubernetes":
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required for s3 storage")
	}
	if c.TikTok.Timeout <= 0 {
		return fmt.Errorf("tiktok.timeout must be positive")
	}
	if c.TikTok.ProxyTimeout <= 0 {
		return fmt.Errorf("tiktok.proxy_timeout must be positive")
	}
	if c.TikTok.ProxyRateLimit < 0 || c.TikTok.ProxyRateBurst < 0 {
		return fmt.Errorf("tiktok.proxy_rate_limit and tiktok.proxy_rate_burst must not be negative")
	}
	if c.Refresh.Enabled && c.Refresh.Window <= 0 {
		return fmt.Errorf("refresh.window must be positive when refresh is enabled")
	}
	return nil
}

// HasTikTokCredentials reports whether the TikTok application identity is configured
func (c *Config) HasTikTokCredentials() bool {
	return c.TikTok.AppID != "" && c.TikTok.ClientSecret != "" && c.TikTok.RedirectURI != ""
}
