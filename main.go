package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/takutakahashi/adplatform-auth/cmd"
)

var rootCmd = &cobra.Command{
	Use:          "adplatform-auth",
	Short:        "Ad platform authorization service",
	Long:         "Runs the TikTok OAuth token lifecycle: authorization, encrypted token storage, refresh and the token proxy",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cmd.ServerCmd)
	rootCmd.AddCommand(cmd.ConnectionsCmd)
	rootCmd.AddCommand(cmd.AuthURLCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
