package web

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/birdo-app/birdo/internal/datastore"
	"github.com/birdo-app/birdo/internal/logger"
)

type dataView struct {
	PageData
	Enabled     bool
	Populations []datastore.Population
	Markers     []datastore.Marker
	MaxQuantity int
}

func (s *Server) handleData(c echo.Context) error {
	view := dataView{PageData: s.pageData(c, "data", "Data"), Enabled: s.opts.Data != nil}
	if s.opts.Data == nil {
		return c.Render(http.StatusOK, "data", view)
	}

	ctx := c.Request().Context()
	pops, err := s.opts.Data.PopulationByAnimal(ctx)
	if err != nil {
		s.log.Error("failed to load populations", logger.Error(err))
		view.Error = "Failed to load observation data."
		return c.Render(http.StatusInternalServerError, "data", view)
	}
	markers, err := s.opts.Data.Markers(ctx)
	if err != nil {
		s.log.Error("failed to load markers", logger.Error(err))
		view.Error = "Failed to load observation data."
		return c.Render(http.StatusInternalServerError, "data", view)
	}

	view.Populations = pops
	view.Markers = markers
	for _, p := range pops {
		view.MaxQuantity = max(view.MaxQuantity, p.Quantity)
	}
	return c.Render(http.StatusOK, "data", view)
}

func (s *Server) handlePopulations(c echo.Context) error {
	if s.opts.Data == nil {
		return c.JSON(http.StatusOK, []datastore.Population{})
	}
	pops, err := s.opts.Data.PopulationByAnimal(c.Request().Context())
	if err != nil {
		s.log.Error("failed to load populations", logger.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load populations")
	}
	if pops == nil {
		pops = []datastore.Population{}
	}
	return c.JSON(http.StatusOK, pops)
}

func (s *Server) handleMarkers(c echo.Context) error {
	if s.opts.Data == nil {
		return c.JSON(http.StatusOK, []datastore.Marker{})
	}
	markers, err := s.opts.Data.Markers(c.Request().Context())
	if err != nil {
		s.log.Error("failed to load markers", logger.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load markers")
	}
	if markers == nil {
		markers = []datastore.Marker{}
	}
	return c.JSON(http.StatusOK, markers)
}
