package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/takutakahashi/adplatform-auth/internal/di"
	"github.com/takutakahashi/adplatform-auth/pkg/config"
	"github.com/takutakahashi/adplatform-auth/pkg/tiktok"
)

var ConnectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "Inspect and manage stored ad platform connections",
}

var connectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored connections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, container *di.Container) error {
			records, err := container.Connections.List(ctx)
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			return writeConnections(cmd.OutOrStdout(), output, container, records)
		})
	},
}

var connectionsRefreshCmd = &cobra.Command{
	Use:   "refresh [platform]",
	Short: "Refresh the tokens of a connection now",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform := tiktok.Platform
		if len(args) == 1 {
			platform = args[0]
		}
		return withContainer(cmd, func(ctx context.Context, container *di.Container) error {
			bundle, err := container.Connections.Refresh(ctx, platform, container.Credentials)
			if err != nil {
				return err
			}
			response := container.ConnectionPresenter.PresentToken(platform, bundle)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s refreshed, tokens expire at %s\n", platform, response.TokenExpiry)
			return err
		})
	},
}

var connectionsDisconnectCmd = &cobra.Command{
	Use:   "disconnect <platform>",
	Short: "Mark a connection disconnected and drop its tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, container *di.Container) error {
			if err := container.Connections.Disconnect(ctx, args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s disconnected\n", args[0])
			return err
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{connectionsListCmd, connectionsRefreshCmd, connectionsDisconnectCmd} {
		addConfigFlags(c)
		ConnectionsCmd.AddCommand(c)
	}
	connectionsListCmd.Flags().StringP("output", "o", "table", "Output format: table, json or yaml")
}

// withContainer loads configuration, builds the container and runs fn with it
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, container *di.Container) error) error {
	cfg, err := loadConfiguration(cmd, config.NewViper())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Shutdown(ctx); err != nil {
			log.Printf("[STORAGE] Failed to close store: %v", err)
		}
	}()

	return fn(ctx, container)
}

func writeConnections(w io.Writer, format string, container *di.Container, records map[string]*tiktok.ConnectionRecord) error {
	response := container.ConnectionPresenter.PresentConnections(records)

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(response); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "PLATFORM\tSTATUS\tAPP ID\tTOKEN EXPIRY\tLAST VERIFIED")
		for _, c := range response.Connections {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Platform, c.Status, orDash(c.AppID), orDash(deref(c.TokenExpiry)), orDash(deref(c.LastVerified)))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
