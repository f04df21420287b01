package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/qsplatform/buildcore/internal/store"
)

func SetupBuildRoutes(g *echo.Group, buildService BuildServicer) {
	h := NewBuildHandler(buildService)
	g.POST("/builds", h.PostBuild)
	g.GET("/builds", h.GetBuilds)
	g.GET("/builds/:build_id", h.GetBuild)
	g.POST("/pipelines/:pipeline_id/cancel", h.PostCancelBuilds)
}

type BuildServicer interface {
	StartBuild(ctx context.Context, pipelineID int64, version string, triggeredBy *int64) (*store.BuildRecord, error)
	CancelBuild(ctx context.Context, pipelineID int64) (int, error)
	GetBuild(ctx context.Context, buildID string) (*store.BuildRecord, error)
	ListBuilds(ctx context.Context, filter store.BuildFilter) ([]*store.BuildRecord, error)
}

type BuildHandler struct {
	buildService BuildServicer
}

func NewBuildHandler(buildService BuildServicer) *BuildHandler {
	return &BuildHandler{buildService}
}

// PostBuild queues a build and answers before it runs.
func (h *BuildHandler) PostBuild(c echo.Context) error {
	p := new(StartBuildParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid build data")
	}
	if p.PipelineID == 0 {
		return newError(nil, http.StatusBadRequest, "pipeline_id is required")
	}

	b, err := h.buildService.StartBuild(c.Request().Context(), p.PipelineID, p.Version, getCtxUserID(c))
	if err != nil {
		return serviceError(err, "unable to start build")
	}
	return c.JSON(http.StatusAccepted, map[string]string{"build_id": b.BuildID})
}

func (h *BuildHandler) PostCancelBuilds(c echo.Context) error {
	p := new(PipelineIDParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline id")
	}
	n, err := h.buildService.CancelBuild(c.Request().Context(), p.PipelineID)
	if err != nil {
		return serviceError(err, "unable to cancel builds")
	}
	return c.JSON(http.StatusOK, map[string]int{"aborted": n})
}

func (h *BuildHandler) GetBuild(c echo.Context) error {
	p := new(BuildIDParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid build id")
	}
	b, err := h.buildService.GetBuild(c.Request().Context(), p.BuildID)
	if err != nil {
		return serviceError(err, "unable to read build")
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BuildHandler) GetBuilds(c echo.Context) error {
	p := new(ListBuildsParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid query")
	}
	status, ok := parseStatus(p.Status)
	if !ok {
		return newError(nil, http.StatusBadRequest, "invalid status")
	}
	from, err := parseDate(p.StartDate, false)
	if err != nil {
		return newError(err, http.StatusBadRequest, "invalid start_date")
	}
	to, err := parseDate(p.EndDate, true)
	if err != nil {
		return newError(err, http.StatusBadRequest, "invalid end_date")
	}

	filter := store.BuildFilter{Status: status, From: from, To: to}
	if p.PipelineID != 0 {
		filter.PipelineID = &p.PipelineID
	}
	filter.Limit, filter.Offset = pageBounds(p.Page)

	builds, err := h.buildService.ListBuilds(c.Request().Context(), filter)
	if err != nil {
		return serviceError(err, "unable to list builds")
	}
	return c.JSON(http.StatusOK, builds)
}
