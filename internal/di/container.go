package di

import (
	"context"
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	"k8s.io/utils/clock"

	"github.com/takutakahashi/adplatform-auth/internal/interfaces/controllers"
	"github.com/takutakahashi/adplatform-auth/internal/interfaces/presenters"
	"github.com/takutakahashi/adplatform-auth/pkg/config"
	"github.com/takutakahashi/adplatform-auth/pkg/crypto"
	"github.com/takutakahashi/adplatform-auth/pkg/proxy"
	"github.com/takutakahashi/adplatform-auth/pkg/schedule"
	"github.com/takutakahashi/adplatform-auth/pkg/storage"
	"github.com/takutakahashi/adplatform-auth/pkg/tiktok"
)

// Container holds all dependencies for the application
type Container struct {
	Config *config.Config
	Clock  clock.PassiveClock

	// Infrastructure
	Store  storage.Store
	Cipher crypto.Cipher

	// Token lifecycle
	Credentials tiktok.Credentials
	States      *tiktok.StateManager
	TokenClient *tiktok.Client
	AuthHandler *tiktok.AuthHandler
	Connections *tiktok.ConnectionService
	AuthURLs    *tiktok.AuthURLBuilder

	// Presenters
	ConnectionPresenter *presenters.ConnectionPresenter

	// Controllers
	HealthController     *controllers.HealthController
	TikTokController     *controllers.TikTokController
	ConnectionController *controllers.ConnectionController
	MainController       *controllers.MainController

	Proxy *proxy.Proxy

	// Refresher is nil unless refresh.enabled is set.
	// LeaderRefresher wraps it when leader election is on.
	Refresher       *schedule.TokenRefresher
	LeaderRefresher *schedule.LeaderRefresher
}

// NewContainer creates and configures a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	store, err := storage.NewStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	cipher, err := crypto.NewCipher(cfg.Encryption)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	container, err := NewContainerWith(cfg, store, cipher, clock.RealClock{})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return container, nil
}

// NewContainerWith builds the container around an existing store, cipher and clock
func NewContainerWith(cfg *config.Config, store storage.Store, cipher crypto.Cipher, clk clock.PassiveClock) (*Container, error) {
	container := &Container{
		Config: cfg,
		Clock:  clk,
		Store:  store,
		Cipher: cipher,
	}

	container.initServices()
	container.initPresenters()
	container.initControllers()

	if err := container.initRefresher(); err != nil {
		return nil, err
	}

	return container, nil
}

// initServices initializes the token lifecycle services
func (c *Container) initServices() {
	c.Credentials = tiktok.Credentials{
		AppID:        c.Config.TikTok.AppID,
		ClientSecret: c.Config.TikTok.ClientSecret,
		RedirectURI:  c.Config.TikTok.RedirectURI,
	}

	c.States = tiktok.NewStateManager(c.Store, c.Cipher, c.Clock)
	c.TokenClient = tiktok.NewClient(tiktok.ClientConfig{
		ExchangeEndpoint: c.Config.TikTok.ExchangeEndpoint,
		RefreshEndpoint:  c.Config.TikTok.RefreshEndpoint,
		Timeout:          c.Config.TikTok.Timeout,
	}, c.Cipher, c.Clock)
	c.AuthHandler = tiktok.NewAuthHandler(c.TokenClient, c.Store, c.Clock)
	c.Connections = tiktok.NewConnectionService(c.Store, c.Cipher, c.AuthHandler, c.TokenClient, c.Clock)
	c.AuthURLs = tiktok.NewAuthURLBuilder(c.States, c.Config.TikTok.AuthURL, c.Config.TikTok.Scopes)
	c.Proxy = proxy.NewProxy(c.Config.TikTok)
}

// initPresenters initializes all presenter dependencies
func (c *Container) initPresenters() {
	c.ConnectionPresenter = presenters.NewConnectionPresenter()
}

// initControllers initializes all controller dependencies
func (c *Container) initControllers() {
	c.HealthController = controllers.NewHealthController(c.Store)
	c.TikTokController = controllers.NewTikTokController(c.AuthURLs, c.States, c.Connections, c.Credentials, c.ConnectionPresenter, c.Clock)
	c.ConnectionController = controllers.NewConnectionController(c.Connections, c.Credentials, c.ConnectionPresenter, c.Clock)
	c.MainController = controllers.NewMainController(c.HealthController, c.TikTokController, c.ConnectionController)
}

// initRefresher initializes the scheduled token refresh when enabled
func (c *Container) initRefresher() error {
	if !c.Config.Refresh.Enabled {
		return nil
	}

	refresher, err := schedule.NewTokenRefresher(c.Connections, c.Credentials, c.Config.Refresh.Schedule, c.Config.Refresh.Window, c.Clock)
	if err != nil {
		return err
	}
	c.Refresher = refresher

	if !c.Config.Refresh.LeaderElection {
		return nil
	}

	k8sStore, ok := c.Store.(*storage.KubernetesStore)
	if !ok {
		return fmt.Errorf("refresh.leader_election requires kubernetes storage, got %s", c.Config.Storage.Type)
	}
	c.LeaderRefresher = schedule.NewLeaderRefresher(refresher, k8sStore.Client(),
		schedule.DefaultLeaderElectionConfig(k8sStore.Namespace(), c.Config.Refresh.LeaseName))
	return nil
}

// RegisterRoutes registers every HTTP route served by the application
func (c *Container) RegisterRoutes(e *echo.Echo) {
	c.MainController.RegisterRoutes(e)
	c.Proxy.RegisterRoutes(e)
}

// StartBackground starts the token refresher. With leader election it runs
// until ctx is cancelled.
func (c *Container) StartBackground(ctx context.Context) error {
	switch {
	case c.LeaderRefresher != nil:
		go c.LeaderRefresher.Run(ctx)
		log.Printf("[REFRESH] Token refresher waiting for leadership")
		return nil
	case c.Refresher != nil:
		return c.Refresher.Start()
	default:
		return nil
	}
}

// Shutdown stops background work and releases the store
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Refresher != nil && c.LeaderRefresher == nil {
		if err := c.Refresher.Stop(ctx); err != nil {
			log.Printf("[REFRESH] %v", err)
		}
	}
	return c.Store.Close()
}
