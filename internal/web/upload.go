package web

import (
	"html/template"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/birdo-app/birdo/internal/backend"
	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/insights"
	"github.com/birdo-app/birdo/internal/logger"
	"github.com/birdo-app/birdo/internal/workflow"
)

type uploadView struct {
	PageData
	workflow.Snapshot
	Preview        template.URL
	Sections       []insights.Section
	ShowMap        bool
	MapAPIKey      string
	MapZoom        int
	Fallback       workflow.Location
	AwaitingChoice bool
}

func (s *Server) handleUploadPage(c echo.Context) error {
	cl, _ := s.clientFor(c)
	snap := cl.controller.Snapshot()

	view := uploadView{
		PageData:  s.pageData(c, "upload", "Upload"),
		Snapshot:  snap,
		ShowMap:   s.settings.Map.APIKey != "",
		MapAPIKey: s.settings.Map.APIKey,
		MapZoom:   s.settings.Map.Zoom,
		Fallback: workflow.Location{
			Latitude:  s.settings.Map.DefaultLatitude,
			Longitude: s.settings.Map.DefaultLongitude,
		},
		AwaitingChoice: snap.State == workflow.AwaitingConfirmation,
	}
	if snap.Draft != nil {
		// data: URLs built from validated image bytes
		view.Preview = template.URL(snap.Draft.PreviewURL) //nolint:gosec
	}
	if snap.Insights != nil {
		view.Sections = snap.Insights.Sections()
	}
	return c.Render(http.StatusOK, "upload", view)
}

// afterAction logs the outcome of a workflow call and redirects back to the
// upload page, which shows the user-facing message from the snapshot.
func (s *Server) afterAction(c echo.Context, action string, err error) error {
	if err != nil {
		log := s.log.With(logger.String("action", action), logger.Error(err))
		if workflow.IsIllegalEvent(err) {
			log.Debug("action not allowed in current state")
		} else {
			log.Info("upload action failed")
		}
	}
	return c.Redirect(http.StatusSeeOther, "/upload")
}

func (s *Server) handleSelect(c echo.Context) error {
	cl, _ := s.clientFor(c)

	img, err := readImage(c)
	if err != nil {
		s.log.Debug("no file in upload form", logger.Error(err))
	}
	return s.afterAction(c, "select", cl.controller.SelectFile(img))
}

func readImage(c echo.Context) (backend.Image, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return backend.Image{}, err
	}
	f, err := fh.Open()
	if err != nil {
		return backend.Image{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize))
	if err != nil {
		return backend.Image{}, err
	}
	// generic types are sniffed from the bytes by the workflow
	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == echo.MIMEOctetStream {
		contentType = ""
	}
	return backend.Image{Filename: fh.Filename, ContentType: contentType, Data: data}, nil
}

func (s *Server) handleStart(c echo.Context) error {
	cl, _ := s.clientFor(c)
	return s.afterAction(c, "upload", cl.controller.Upload(actionContext(c)))
}

func (s *Server) handleConfirm(c echo.Context) error {
	cl, _ := s.clientFor(c)
	return s.afterAction(c, "confirm", cl.controller.Confirm(actionContext(c)))
}

func (s *Server) handleCorrect(c echo.Context) error {
	cl, _ := s.clientFor(c)
	return s.afterAction(c, "correct", cl.controller.Correct(actionContext(c), c.FormValue("species")))
}

func (s *Server) handleCancel(c echo.Context) error {
	cl, _ := s.clientFor(c)
	return s.afterAction(c, "cancel", cl.controller.Cancel())
}

func (s *Server) handlePickLocation(c echo.Context) error {
	cl, _ := s.clientFor(c)

	lat, errLat := strconv.ParseFloat(c.FormValue("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.FormValue("lng"), 64)
	if err := errors.Join(errLat, errLng); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid coordinates")
	}
	return s.afterAction(c, "pick-location", cl.controller.PickLocation(lat, lng))
}

func (s *Server) handleConfirmLocation(c echo.Context) error {
	cl, _ := s.clientFor(c)
	return s.afterAction(c, "confirm-location", cl.controller.ConfirmLocation(actionContext(c)))
}

func (s *Server) handleInsights(c echo.Context) error {
	cl, _ := s.clientFor(c)
	return s.afterAction(c, "insights", cl.controller.RequestInsights(actionContext(c)))
}
