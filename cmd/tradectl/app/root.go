package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moweilong/tradeclient/cmd/tradectl/app/options"
	"github.com/moweilong/tradeclient/pkg/log"
)

const (
	// defaultHomeDir defines the default directory to store the configuration for tradectl.
	defaultHomeDir = ".tradectl"

	// defaultConfigName specifies the default configuration file name for tradectl.
	defaultConfigName = "tradectl.yaml"

	// envPrefix prefixes environment variables overriding configuration keys,
	// e.g. TRADECTL_TOKEN_STORE_FILE_PASSPHRASE.
	envPrefix = "TRADECTL"
)

// NewTradeCtlCommand creates the tradectl root command.
func NewTradeCtlCommand() *cobra.Command {
	opts := options.NewClientOptions()
	var configFile string

	cmd := &cobra.Command{
		Use:   "tradectl",
		Short: "Command line client for the trading API",
		Long: fmt.Sprintf(`tradectl talks to the trading API through the resilient client core:
expired sessions are refreshed transparently, short rate limits are waited out,
and transient failures are retried within the configured budget.

Config: %s`, color.HiCyanString(filePath())),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cmd, configFile); err != nil {
				return err
			}
			// Unmarshal the configuration from viper into opts
			if err := viper.Unmarshal(opts); err != nil {
				return fmt.Errorf("failed to unmarshal configuration: %w", err)
			}
			if err := opts.Complete(); err != nil {
				return err
			}
			log.Init(opts.LogOptions)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Sync()
		},
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", filePath(), "Path to the tradectl configuration file.")
	opts.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newProfileCommand(opts),
		newGetCommand(opts),
		newPostCommand(opts),
		newConfigCommand(opts),
	)

	return cmd
}

// initConfig reads the configuration file and binds flags and environment
// variables, flags taking precedence.
func initConfig(cmd *cobra.Command, configFile string) error {
	viper.SetConfigFile(configFile)
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read configuration file %s: %w", configFile, err)
	}
	return nil
}

// filePath retrieves the full path to the default configuration file.
func filePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(home, defaultHomeDir, defaultConfigName)
}
