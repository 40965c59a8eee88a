// Package configcmd manages the Birdo configuration file.
package configcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/birdo-app/birdo/internal/conf"
	"github.com/birdo-app/birdo/internal/errors"
)

// Command creates the config command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(initCommand(settings), pathCommand())
	return cmd
}

func initCommand(settings *conf.Settings) *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the current settings to a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := writeConfig(settings, path, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Config file to write (default: user config directory)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func pathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			used := viper.ConfigFileUsed()
			if used == "" {
				used = "(none, using defaults and environment)"
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), used)
			return err
		},
	}
}

func writeConfig(settings *conf.Settings, path string, force bool) (string, error) {
	if path == "" {
		var err error
		if path, err = conf.UserConfigPath(); err != nil {
			return "", errors.New(err).
				Component("cli").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}

	if _, err := os.Stat(path); err == nil && !force {
		return "", errors.Newf("%s already exists, use --force to overwrite", path).
			Component("cli").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	if err := conf.SaveYAMLConfig(path, settings); err != nil {
		return "", err
	}
	return path, nil
}
