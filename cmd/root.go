// Package cmd assembles the birdo command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/birdo-app/birdo/cmd/configcmd"
	"github.com/birdo-app/birdo/cmd/data"
	"github.com/birdo-app/birdo/cmd/insights"
	"github.com/birdo-app/birdo/cmd/serve"
	"github.com/birdo-app/birdo/cmd/upload"
	"github.com/birdo-app/birdo/internal/buildinfo"
	"github.com/birdo-app/birdo/internal/conf"
	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "birdo",
		Short:         "Birdo wildlife observation client",
		Version:       build.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		panic(err)
	}

	configCmd := configcmd.Command(settings)
	rootCmd.AddCommand(
		serve.Command(settings, build),
		upload.Command(settings, build),
		insights.Command(settings, build),
		data.Command(settings),
		configCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(settings, build)
	}

	return rootCmd
}

// initialize sets up logging and telemetry once flags are parsed.
func initialize(settings *conf.Settings, build *buildinfo.Context) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if settings.Telemetry.Enabled && settings.Telemetry.DSN != "" {
		if err := errors.InitSentry(settings.Telemetry.DSN, build.Release()); err != nil {
			central.Module("telemetry").Warn("error reporting disabled", logger.Error(err))
		}
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Backend.BaseURL, "backend", viper.GetString("backend.base_url"), "Base URL of the observation backend")
	rootCmd.PersistentFlags().StringVar(&settings.Auth.Email, "email", viper.GetString("auth.email"), "Account email")
	rootCmd.PersistentFlags().StringVar(&settings.Auth.Password, "password", viper.GetString("auth.password"), "Account password (prefer BIRDO_AUTH_PASSWORD)")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
