// Package upload runs the observation workflow from the terminal.
package upload

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/birdo-app/birdo/internal/app"
	"github.com/birdo-app/birdo/internal/backend"
	"github.com/birdo-app/birdo/internal/buildinfo"
	"github.com/birdo-app/birdo/internal/conf"
	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/logger"
)

const drainTimeout = 5 * time.Second

// Command creates the upload command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var opts promptOptions

	cmd := &cobra.Command{
		Use:   "upload <image>",
		Short: "Identify and record an observation from an image file",
		Long: `Upload an image, confirm or correct the identified species, pick a
location and save the observation.

Examples:
  birdo upload elephant.jpg
  birdo upload --lat 10 --lng 20 --insights elephant.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.location = cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng")
			err := run(cmd, settings, build, args[0], opts)
			if errors.Is(err, errCancelled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().AddFlagSet(locationFlags(&opts, settings.Map))
	cmd.Flags().BoolVar(&opts.insights, "insights", false, "Print conservation insights for the species")
	return cmd
}

// locationFlags defaults to the map fallback coordinate.
func locationFlags(opts *promptOptions, m conf.MapSettings) *pflag.FlagSet {
	fs := pflag.NewFlagSet("location", pflag.ContinueOnError)
	fs.Float64Var(&opts.lat, "lat", m.DefaultLatitude, "Latitude of the observation, skips the location prompt")
	fs.Float64Var(&opts.lng, "lng", m.DefaultLongitude, "Longitude of the observation, skips the location prompt")
	return fs
}

func run(cmd *cobra.Command, settings *conf.Settings, build *buildinfo.Context, path string, opts promptOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(err).
			Component("cli").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	if settings.Auth.Email == "" || settings.Auth.Password == "" {
		return errors.Newf("credentials required: use --email/--password or BIRDO_AUTH_EMAIL/BIRDO_AUTH_PASSWORD").
			Component("cli").
			Category(errors.CategoryValidation).
			Build()
	}

	ctx := cmd.Context()
	log := logger.Global().Module("birdo")

	a, err := app.New(ctx, settings, build, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(drainTimeout); err != nil {
			log.Warn("shutdown incomplete", logger.Error(err))
		}
	}()

	sess := a.NewSession()
	if err := sess.Login(ctx, settings.Auth.Email, settings.Auth.Password); err != nil {
		return err
	}

	p := newPrompter(a.NewController(sess), cmd.InOrStdin(), cmd.OutOrStdout(), opts)
	return p.run(ctx, backend.Image{Filename: filepath.Base(path), Data: data})
}
