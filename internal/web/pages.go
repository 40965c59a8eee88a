package web

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/logger"
)

// Feature is one card on the Learn More page.
type Feature struct {
	Title string
	Text  string
}

var learnMoreFeatures = []Feature{
	{"Simple Upload", "Effortlessly submit your environmental observations through our secure platform"},
	{"Real-time Analytics", "Watch your impact grow with our dynamic data visualization tools"},
	{"Eco Tracking", "Get actionable insights about the animals you track"},
}

var learnMoreSteps = []string{
	"Create your free environmental account",
	"Upload your wildlife observations",
	"Track global impact in real-time",
}

func (s *Server) handleHome(c echo.Context) error {
	return c.Render(http.StatusOK, "home", s.pageData(c, "home", "Home"))
}

func (s *Server) handleLearnMore(c echo.Context) error {
	return c.Render(http.StatusOK, "learnmore", struct {
		PageData
		Features []Feature
		Steps    []string
	}{
		PageData: s.pageData(c, "learn-more", "Learn More"),
		Features: learnMoreFeatures,
		Steps:    learnMoreSteps,
	})
}

type loginView struct {
	PageData
	Email string
}

func (s *Server) handleLoginPage(c echo.Context) error {
	data := s.pageData(c, "login", "Login")
	if data.Authenticated {
		return c.Redirect(http.StatusFound, "/upload")
	}
	return c.Render(http.StatusOK, "login", loginView{PageData: data})
}

func (s *Server) handleLogin(c echo.Context) error {
	cl, sess := s.clientFor(c)
	email := c.FormValue("email")
	password := c.FormValue("password")

	if err := cl.session.Login(actionContext(c), email, password); err != nil {
		status, msg := http.StatusBadGateway, "Login failed. Please try again."
		switch {
		case errors.IsNetwork(err):
			status, msg = http.StatusServiceUnavailable, "Could not reach the server. Please try again."
		case errors.IsCategory(err, errors.CategoryAuth):
			status, msg = http.StatusUnauthorized, "Invalid email or password."
		case errors.IsValidation(err):
			status, msg = http.StatusBadRequest, "Email and password are required."
		}
		s.recordAuth("login", "failure")
		data := s.pageData(c, "login", "Login")
		data.Error = msg
		return c.Render(status, "login", loginView{PageData: data, Email: email})
	}

	user, _ := cl.session.Current()
	sess.Values[keyEmail] = user.Email
	sess.Values[keyLoginAt] = user.LoginAt.Unix()
	s.saveSession(c, sess)
	s.recordAuth("login", "success")
	return c.Redirect(http.StatusFound, "/upload")
}

func (s *Server) handleLogout(c echo.Context) error {
	cl, sess := s.clientFor(c)
	cl.session.Logout()
	s.clients.Delete(cl.id)

	delete(sess.Values, keyEmail)
	delete(sess.Values, keyLoginAt)
	delete(sess.Values, keySessionID)
	s.saveSession(c, sess)

	s.recordAuth("logout", "success")
	s.log.Debug("session ended", logger.Time("at", time.Now()))
	return c.Redirect(http.StatusFound, "/")
}

func (s *Server) recordAuth(op, status string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.HTTP.RecordAuthOperation(op, status)
	}
}
