package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/takutakahashi/adplatform-auth/internal/di"
)

var AuthURLCmd = &cobra.Command{
	Use:   "auth-url",
	Short: "Print a TikTok authorization URL",
	Long:  "Generate a fresh authorization state and print the URL the user must open to connect TikTok",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, container *di.Container) error {
			if container.Config.Storage.Type == "memory" {
				log.Printf("[STATE] Memory storage does not outlive this command; the callback will reject the state")
			}
			authURL, err := container.AuthURLs.AuthURL(ctx, container.Credentials.AppID, container.Credentials.RedirectURI)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), authURL)
			return err
		})
	},
}

func init() {
	addConfigFlags(AuthURLCmd)
}
