package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/takutakahashi/adplatform-auth/pkg/config"
)

// addConfigFlags adds the flags shared by every command that loads configuration
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "Configuration file path (JSON, YAML or TOML)")
	cmd.Flags().String("env-file", "", "File of KEY=VALUE pairs applied to the environment before loading configuration")
}

// loadConfiguration resolves configuration for cmd: env file, then config file,
// then ADAUTH_* environment variables, then flags bound to v
func loadConfiguration(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	vars, err := config.LoadEnvFile(envFile)
	if err != nil {
		return nil, err
	}
	config.ApplyEnvVars(vars)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfigWithViper(v, configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
