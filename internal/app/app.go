// Package app builds the long-lived services shared by the web server and the
// terminal workflow from Settings.
package app

import (
	"context"
	"path/filepath"
	"time"

	"github.com/birdo-app/birdo/internal/backend"
	"github.com/birdo-app/birdo/internal/buildinfo"
	"github.com/birdo-app/birdo/internal/conf"
	"github.com/birdo-app/birdo/internal/datastore"
	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/events"
	"github.com/birdo-app/birdo/internal/geocode"
	"github.com/birdo-app/birdo/internal/logger"
	"github.com/birdo-app/birdo/internal/mqtt"
	"github.com/birdo-app/birdo/internal/notification"
	"github.com/birdo-app/birdo/internal/observability"
	"github.com/birdo-app/birdo/internal/session"
	"github.com/birdo-app/birdo/internal/species"
	"github.com/birdo-app/birdo/internal/workflow"
)

const authCheckTimeout = 5 * time.Second

// App owns the shared services. Close releases them in reverse order.
type App struct {
	Settings   *conf.Settings
	Build      *buildinfo.Context
	Log        logger.Logger
	Metrics    *observability.Metrics
	Backend    *backend.Client
	Geocoder   *geocode.Geocoder
	Normalizer *species.Normalizer
	Store      *datastore.Store // nil when the journal is disabled
	Bus        *events.EventBus

	root logger.Logger
	mqtt *mqtt.Client
}

// New builds the services. Optional consumers that fail to start are logged
// and skipped; configuration errors are returned.
func New(ctx context.Context, settings *conf.Settings, build *buildinfo.Context, log logger.Logger) (*App, error) {
	a := &App{
		Settings:   settings,
		Build:      build,
		Log:        log.Module("app"),
		root:       log,
		Normalizer: species.NewNormalizer(settings.Species.Overrides),
	}

	var err error
	if a.Metrics, err = observability.NewMetrics(); err != nil {
		return nil, err
	}

	a.Backend, err = backend.NewClient(backend.Config{
		BaseURL:   settings.Backend.BaseURL,
		Timeout:   settings.Backend.Timeout,
		UserAgent: userAgent(settings, build),
		CacheTTL:  settings.Backend.CacheTTL,
	}, log, backend.WithRecorder(a.Metrics.Client))
	if err != nil {
		return nil, err
	}

	a.Geocoder = geocode.New(geocode.Config{
		Endpoint:  settings.Geocode.Endpoint,
		APIKey:    settings.GeocodeKey(),
		Timeout:   settings.Geocode.Timeout,
		CacheTTL:  settings.Geocode.CacheTTL,
		RateLimit: settings.Geocode.RateLimit,
		UserAgent: userAgent(settings, build),
	}, log, a.Metrics.Client)
	if settings.GeocodeKey() == "" {
		a.Log.Warn("no geocoding API key configured, saving observations will fail")
	}

	a.Bus = events.New(events.DefaultConfig(), log, a.Metrics.Notification)

	if err := a.registerConsumers(ctx, log); err != nil {
		a.Close(time.Second)
		return nil, err
	}
	return a, nil
}

func userAgent(settings *conf.Settings, build *buildinfo.Context) string {
	if settings.Backend.UserAgent != "" {
		return settings.Backend.UserAgent
	}
	return build.UserAgent()
}

func (a *App) registerConsumers(ctx context.Context, log logger.Logger) error {
	s := a.Settings

	if s.Datastore.Enabled {
		store, err := datastore.Open(datastore.Config{
			Type:       s.Datastore.Type,
			SQLitePath: filepath.Clean(s.Datastore.SQLite.Path),
			MySQL: datastore.MySQLConfig{
				Host:     s.Datastore.MySQL.Host,
				Port:     s.Datastore.MySQL.Port,
				Username: s.Datastore.MySQL.Username,
				Password: s.Datastore.MySQL.Password,
				Database: s.Datastore.MySQL.Database,
			},
		}, log, a.Metrics.Datastore)
		if err != nil {
			return err
		}
		a.Store = store
		if err := a.Bus.RegisterConsumer(datastore.NewJournalConsumer(store)); err != nil {
			return err
		}
	}

	if s.Notification.Enabled {
		notifier, err := notification.New(s.Notification.URLs, s.Notification.Timeout, log)
		if err != nil {
			return err
		}
		if err := a.Bus.RegisterConsumer(notifier); err != nil {
			return err
		}
	}

	if s.MQTT.Enabled {
		client, err := mqtt.NewClient(mqtt.Config{
			Broker:   s.MQTT.Broker,
			ClientID: s.MQTT.ClientID,
			Username: s.MQTT.Username,
			Password: s.MQTT.Password,
		}, log)
		if err != nil {
			return err
		}
		if err := client.Connect(ctx); err != nil {
			a.Log.Warn("MQTT publishing disabled, broker unreachable",
				logger.String("broker", s.MQTT.Broker),
				logger.Error(err))
		} else {
			a.mqtt = client
			if err := a.Bus.RegisterConsumer(mqtt.NewPublisher(client, s.MQTT.Topic, s.MQTT.Retain)); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckBackend checks that the backend answers /check-auth.
func (a *App) CheckBackend(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, authCheckTimeout)
	defer cancel()

	authenticated, err := a.Backend.CheckAuth(ctx)
	if err != nil {
		a.Log.Warn("backend not reachable",
			logger.String("backend", a.Settings.Backend.BaseURL),
			logger.Error(err))
		return err
	}
	a.Log.Info("backend reachable",
		logger.String("backend", a.Settings.Backend.BaseURL),
		logger.Bool("authenticated", authenticated))
	return nil
}

// NewSession returns an empty session authenticated against the backend.
func (a *App) NewSession() *session.Session {
	return session.New(a.Backend, a.root)
}

// NewController returns a workflow controller bound to sess.
func (a *App) NewController(sess *session.Session) *workflow.Controller {
	return workflow.NewController(workflow.Dependencies{
		Backend:    a.Backend,
		Geocoder:   a.Geocoder,
		Normalizer: a.Normalizer,
		Session:    sess,
		Publisher:  a.Bus,
		Metrics:    a.Metrics.Workflow,
		Logger:     a.root,
		Fallback: workflow.Location{
			Latitude:  a.Settings.Map.DefaultLatitude,
			Longitude: a.Settings.Map.DefaultLongitude,
		},
	})
}

// Close drains the event bus within timeout, then releases connections.
func (a *App) Close(timeout time.Duration) error {
	var errs []error
	if a.Bus != nil {
		if err := a.Bus.Shutdown(timeout); err != nil {
			errs = append(errs, err)
		}
	}
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Geocoder != nil {
		a.Geocoder.Close()
	}
	if a.Backend != nil {
		a.Backend.Close()
	}
	return errors.Join(errs...)
}
