// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bidrunner/internal/config"
	"github.com/xkilldash9x/bidrunner/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

var cfgFile string

// dotEnvFile holds secrets such as BIDRUNNER_STATS_DATABASE_URL for local runs.
const dotEnvFile = ".env"

// NewRootCommand builds the command tree. Each call returns an independent tree so
// tests never share flag state.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultFactory{})
}

func newRootCommand(factory ComponentFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "bidrunner",
		Short:   "bidrunner drives a marketplace buy-order screen through a USB HID bridge.",
		Version: Version,
		// The config is loaded here so every subcommand sees the same validated Config.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "bidrunner"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "bidrunner"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting bidrunner", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./bidrunner.yaml or ~/.bidrunner/bidrunner.yaml)")

	rootCmd.AddCommand(newRunCmd(factory))
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newCompareCmd())
	rootCmd.AddCommand(newHistoryCmd(factory))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the root command with a signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			observability.GetLogger().Error("Command execution failed", zap.Error(err))
		}
		return err
	}
	return nil
}

// initializeConfig reads the config file and environment into v.
func initializeConfig(v *viper.Viper) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".bidrunner"))
		}
		v.SetConfigName("bidrunner")
		v.SetConfigType("yaml")
	}

	if err := loadDotEnv(dotEnvFile); err != nil {
		return err
	}

	v.SetEnvPrefix("BIDRUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}
	return nil
}

// loadDotEnv exports the variables in path. Variables already set in the
// environment win, and a missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// getConfigFromContext returns the Config stored by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if ctx == nil {
		return nil, errors.New("command context is nil")
	}
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not found in command context")
	}
	return cfg, nil
}
