package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/birdo-app/birdo/internal/logger"
)

// CSRFContextKey is the key used to store the CSRF token in the context.
const CSRFContextKey = "birdo-csrf"

// requestMiddleware assigns a request ID, logs the request and records metrics.
func (s *Server) requestMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		requestID := c.Request().Header.Get(echo.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.New().String()[:8]
		}
		c.Response().Header().Set(echo.HeaderXRequestID, requestID)
		c.SetRequest(c.Request().WithContext(logger.WithTraceID(c.Request().Context(), requestID)))

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		status := c.Response().Status
		elapsed := time.Since(start)
		path := c.Path()
		if path == "" {
			path = "unmatched"
		}

		if s.opts.Metrics != nil {
			s.opts.Metrics.HTTP.RecordHTTPRequest(c.Request().Method, path, status, elapsed)
		}

		log := s.log.WithContext(c.Request().Context()).With(
			logger.String("method", c.Request().Method),
			logger.String("path", c.Request().URL.Path),
			logger.Int("status", status),
			logger.Duration("elapsed", elapsed),
		)
		if status >= http.StatusInternalServerError {
			log.Warn("request failed")
		} else {
			log.Debug("request served")
		}
		return nil
	}
}

// CSRFMiddleware protects the form posts. The JSON data API and /metrics are
// read-only and skipped.
func (s *Server) CSRFMiddleware() echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
		CookieMaxAge:   1800,
		TokenLength:    32,
		ContextKey:     CSRFContextKey,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/api/") || path == "/metrics"
		},
		ErrorHandler: func(err error, c echo.Context) error {
			s.log.Warn("CSRF token validation failed",
				logger.String("path", c.Request().URL.Path),
				logger.Error(err))
			return echo.NewHTTPError(http.StatusForbidden, "Invalid CSRF token")
		},
	})
}

// actionContext carries the request values without the request's cancellation.
func actionContext(c echo.Context) context.Context {
	return context.WithoutCancel(c.Request().Context())
}

func csrfToken(c echo.Context) string {
	token, _ := c.Get(CSRFContextKey).(string)
	return token
}
