package cmd

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/takutakahashi/adplatform-auth/internal/di"
	"github.com/takutakahashi/adplatform-auth/pkg/config"
)

var ServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the ad platform authorization server",
	Long:  "Start the HTTP server serving the TikTok authorization flow, stored connections and the token proxy endpoints",
	RunE:  runServer,
}

func init() {
	addConfigFlags(ServerCmd)
	ServerCmd.Flags().StringP("port", "p", "", "Port to listen on (overrides server.port)")
	ServerCmd.Flags().BoolP("verbose", "v", false, "Enable verbose logging")
}

// newServer builds the echo instance serving every route of container
func newServer(container *di.Container) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	container.RegisterRoutes(e)
	return e
}

func runServer(cmd *cobra.Command, args []string) error {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	v := config.NewViper()
	if err := v.BindPFlag("server.port", cmd.Flags().Lookup("port")); err != nil {
		log.Printf("Failed to bind port flag: %v", err)
	}

	cfg, err := loadConfiguration(cmd, v)
	if err != nil {
		return err
	}
	if !cfg.HasTikTokCredentials() {
		log.Printf("[CONFIG] TikTok credentials are incomplete; the authorization flow is unavailable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}

	e := newServer(container)

	if err := container.StartBackground(ctx); err != nil {
		return err
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Starting adplatform-auth on port %s", cfg.Server.Port)
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received, shutting down gracefully...")
	case runErr = <-serverErr:
		log.Printf("Server failed: %v", runErr)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := container.Shutdown(shutdownCtx); err != nil {
		log.Printf("Container shutdown error: %v", err)
	}

	log.Printf("Server shutdown complete")
	return runErr
}
