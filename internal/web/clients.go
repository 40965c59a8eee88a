package web

import (
	"crypto/sha256"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"

	"github.com/birdo-app/birdo/internal/logger"
	"github.com/birdo-app/birdo/internal/session"
	"github.com/birdo-app/birdo/internal/workflow"
)

const (
	cookieName   = "birdo_session"
	keySessionID = "sid"
	keyEmail     = "email"
	keyLoginAt   = "login_at"
	clientCtxKey = "birdo.client"
)

// client is the server-side state of one browser: its identity and its
// upload workflow. Lost on restart; the identity is restored from the cookie.
type client struct {
	id         string
	session    *session.Session
	controller *workflow.Controller
}

func createSessionKey(seed string) []byte {
	sum := sha256.Sum256([]byte(seed))
	return sum[:]
}

func newCookieStore(secret string, maxAge time.Duration) *sessions.CookieStore {
	store := sessions.NewCookieStore(createSessionKey(secret), createSessionKey(secret+"encryption"))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func (s *Server) newClient(id string) *client {
	sess := session.New(s.opts.Authenticator, s.opts.Logger)
	deps := workflow.Dependencies{
		Backend:    s.opts.Backend,
		Geocoder:   s.opts.Geocoder,
		Normalizer: s.opts.Normalizer,
		Session:    sess,
		Publisher:  s.opts.Publisher,
		Logger:     s.opts.Logger,
		Fallback: workflow.Location{
			Latitude:  s.settings.Map.DefaultLatitude,
			Longitude: s.settings.Map.DefaultLongitude,
		},
	}
	if s.opts.Metrics != nil {
		deps.Metrics = s.opts.Metrics.Workflow
	}
	return &client{id: id, session: sess, controller: workflow.NewController(deps)}
}

// clientFor returns the state bound to the request's cookie, creating the
// cookie and the state on first visit.
func (s *Server) clientFor(c echo.Context) (*client, *sessions.Session) {
	if cl, ok := c.Get(clientCtxKey).(*client); ok {
		sess, _ := s.store.Get(c.Request(), cookieName)
		return cl, sess
	}

	// a cookie that no longer decodes yields a fresh session
	sess, err := s.store.Get(c.Request(), cookieName)
	if err != nil {
		s.log.Debug("discarding undecodable session cookie", logger.Error(err))
	}

	id, _ := sess.Values[keySessionID].(string)
	if id == "" {
		id = uuid.NewString()
		sess.Values[keySessionID] = id
		s.saveSession(c, sess)
	}

	var cl *client
	if cached, ok := s.clients.Get(id); ok {
		cl = cached.(*client)
	} else {
		cl = s.newClient(id)
		if email, ok := sess.Values[keyEmail].(string); ok && email != "" {
			loginAt, _ := sess.Values[keyLoginAt].(int64)
			cl.session.Restore(session.User{Email: email, LoginAt: time.Unix(loginAt, 0)})
		}
	}
	s.clients.SetDefault(id, cl)
	s.trackSessions()
	c.Set(clientCtxKey, cl)
	return cl, sess
}

func (s *Server) trackSessions() {
	if s.opts.Metrics != nil {
		s.opts.Metrics.HTTP.SetActiveSessions(s.clients.ItemCount())
	}
}

func (s *Server) saveSession(c echo.Context, sess *sessions.Session) {
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		s.log.Warn("failed to save session cookie", logger.Error(err))
	}
}

// RequireAuth redirects to /login when the browser has no logged-in user.
func (s *Server) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cl, _ := s.clientFor(c)
		if !cl.session.IsAuthenticated() {
			return c.Redirect(http.StatusFound, "/login")
		}
		return next(c)
	}
}
