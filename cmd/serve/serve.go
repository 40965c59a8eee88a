// Package serve runs the web front-end.
package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/birdo-app/birdo/internal/app"
	"github.com/birdo-app/birdo/internal/buildinfo"
	"github.com/birdo-app/birdo/internal/conf"
	"github.com/birdo-app/birdo/internal/logger"
	"github.com/birdo-app/birdo/internal/web"
)

const shutdownTimeout = 10 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web front-end",
		Long:  "Serve the Birdo pages, the upload workflow and the observation data API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings, build)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		panic(err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Listen, "listen", viper.GetString("webserver.listen"), "Listen address of the web server")
	cmd.Flags().BoolVar(&settings.WebServer.Metrics, "metrics", viper.GetBool("webserver.metrics"), "Expose Prometheus metrics on /metrics")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	log := logger.Global().Module("birdo")

	a, err := app.New(ctx, settings, build, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(shutdownTimeout); err != nil {
			log.Warn("shutdown incomplete", logger.Error(err))
		}
	}()

	// The web server starts either way; the auth check only reports.
	_ = a.CheckBackend(ctx)

	opts := web.Options{
		Settings:      settings,
		Backend:       a.Backend,
		Authenticator: a.Backend,
		Geocoder:      a.Geocoder,
		Normalizer:    a.Normalizer,
		Publisher:     a.Bus,
		Metrics:       a.Metrics,
		Logger:        log,
	}
	if a.Store != nil {
		opts.Data = a.Store
	}
	srv, err := web.New(opts)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("birdo started",
		logger.String("version", build.GetVersion()),
		logger.String("listen", settings.WebServer.Listen),
		logger.String("backend", settings.Backend.BaseURL))
	return g.Wait()
}
