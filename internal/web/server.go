// Package web serves the browser front-end: public pages, login, the guarded
// upload workflow and the Data page backed by the local journal.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gocache "github.com/patrickmn/go-cache"

	"github.com/birdo-app/birdo/internal/conf"
	"github.com/birdo-app/birdo/internal/datastore"
	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/events"
	"github.com/birdo-app/birdo/internal/logger"
	"github.com/birdo-app/birdo/internal/observability"
	"github.com/birdo-app/birdo/internal/session"
	"github.com/birdo-app/birdo/internal/species"
	"github.com/birdo-app/birdo/internal/workflow"
)

// DataSource provides the Data page aggregates. *datastore.Store satisfies it.
type DataSource interface {
	PopulationByAnimal(ctx context.Context) ([]datastore.Population, error)
	Markers(ctx context.Context) ([]datastore.Marker, error)
}

// Options wires a Server. Data, Publisher and Metrics are optional.
type Options struct {
	Settings      *conf.Settings
	Backend       workflow.Backend
	Authenticator session.Authenticator
	Geocoder      workflow.Geocoder
	Normalizer    *species.Normalizer
	Publisher     events.Publisher
	Data          DataSource
	Metrics       *observability.Metrics
	Logger        logger.Logger
}

// Server encapsulates the echo instance and per-browser workflow state.
type Server struct {
	Echo *echo.Echo

	opts     Options
	settings *conf.Settings
	log      logger.Logger
	store    sessions.Store
	clients  *gocache.Cache // session id -> *client
}

const (
	defaultSessionMaxAge = 7 * 24 * time.Hour
	maxUploadSize        = 10 << 20
)

// New builds the server and registers all routes.
func New(opts Options) (*Server, error) {
	if opts.Settings == nil || opts.Backend == nil || opts.Authenticator == nil {
		return nil, errors.Newf("web server requires settings, backend and authenticator").
			Component("web").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if opts.Normalizer == nil {
		opts.Normalizer = species.NewNormalizer(opts.Settings.Species.Overrides)
	}

	maxAge := opts.Settings.WebServer.SessionMaxAge
	if maxAge <= 0 {
		maxAge = defaultSessionMaxAge
	}

	s := &Server{
		Echo:     echo.New(),
		opts:     opts,
		settings: opts.Settings,
		log:      opts.Logger.Module("web"),
		store:    newCookieStore(opts.Settings.WebServer.SessionSecret, maxAge),
		clients:  gocache.New(maxAge, 10*time.Minute),
	}
	s.clients.OnEvicted(func(string, any) { s.trackSessions() })
	s.Echo.HideBanner = true
	s.Echo.HidePort = true

	renderer, err := newTemplateRenderer()
	if err != nil {
		return nil, err
	}
	s.Echo.Renderer = renderer

	s.configureMiddleware()
	s.initRoutes()
	return s, nil
}

func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(s.requestMiddleware)
	s.Echo.Use(middleware.BodyLimit("12M"))
	s.Echo.Use(s.CSRFMiddleware())
}

func (s *Server) initRoutes() {
	s.Echo.GET("/", s.handleHome)
	s.Echo.GET("/learn-more", s.handleLearnMore)
	s.Echo.GET("/data", s.handleData)

	auth := s.Echo.Group("")
	auth.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(10)))
	auth.GET("/login", s.handleLoginPage)
	auth.POST("/login", s.handleLogin)
	auth.GET("/logout", s.handleLogout)

	upload := s.Echo.Group("/upload", s.RequireAuth)
	upload.GET("", s.handleUploadPage)
	upload.POST("/select", s.handleSelect)
	upload.POST("/start", s.handleStart)
	upload.POST("/confirm", s.handleConfirm)
	upload.POST("/correct", s.handleCorrect)
	upload.POST("/cancel", s.handleCancel)
	upload.POST("/location", s.handlePickLocation)
	upload.POST("/location/confirm", s.handleConfirmLocation)
	upload.POST("/insights", s.handleInsights)

	api := s.Echo.Group("/api/v1/data")
	api.GET("/populations", s.handlePopulations)
	api.GET("/markers", s.handleMarkers)

	if s.settings.WebServer.Metrics && s.opts.Metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.opts.Metrics.Handler()))
	}
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	s.log.Info("web server starting", logger.String("listen", s.settings.WebServer.Listen))
	if err := s.Echo.Start(s.settings.WebServer.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("web").
			Category(errors.CategoryNetwork).
			Context("listen", s.settings.WebServer.Listen).
			Build()
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.clients.Flush()
	s.trackSessions()
	return s.Echo.Shutdown(ctx)
}
