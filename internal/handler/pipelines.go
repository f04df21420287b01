package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/qsplatform/buildcore/internal"
	"github.com/qsplatform/buildcore/internal/service"
	"github.com/qsplatform/buildcore/internal/store"
)

const maxDefinitionSize = 1 << 20

func SetupPipelineRoutes(g *echo.Group, pipelineService PipelineServicer, buildService BuildServicer) {
	h := NewPipelineHandler(pipelineService, buildService)
	g.POST("/projects", h.PostProject)
	g.GET("/projects", h.GetProjects)
	g.POST("/pipelines", h.PostPipeline)
	g.POST("/pipelines/import", h.PostImportPipeline)
	g.GET("/pipelines", h.GetPipelines)
	g.GET("/pipelines/:pipeline_id", h.GetPipeline)
	g.POST("/pipelines/:pipeline_id/stages", h.PostStage)
	g.PATCH("/pipelines/:pipeline_id/schedule", h.PatchPipelineSchedule)
	g.PATCH("/pipelines/:pipeline_id/active", h.PatchPipelineActive)
	g.DELETE("/pipelines/:pipeline_id", h.DeletePipeline)
	g.POST(
		"/pipelines/:pipeline_id/webhook-trigger/:branch",
		h.PostWebhookTrigger,
		RequireAPIKey,
	)
}

type PipelineWriter interface {
	CreateProject(ctx context.Context, name, description string) (*store.Project, error)
	CreatePipeline(
		ctx context.Context,
		projectID int64,
		name, description string,
		createdBy *int64,
	) (*store.Pipeline, error)
	ImportPipeline(ctx context.Context, data []byte, createdBy *int64) (*store.Pipeline, error)
	AddStage(ctx context.Context, pipelineID int64, in service.StageInput) (*store.Stage, error)
	UpdatePipelineSchedule(ctx context.Context, pipelineID int64, schedule, branch *string) error
	SetPipelineActive(ctx context.Context, pipelineID int64, active bool) error
	DeletePipeline(ctx context.Context, pipelineID int64) error
}

type PipelineReader interface {
	ListProjects(ctx context.Context) ([]*store.Project, error)
	GetPipeline(ctx context.Context, pipelineID int64) (*store.Pipeline, error)
	ListPipelines(ctx context.Context) ([]*store.Pipeline, error)
}

type PipelineServicer interface {
	PipelineWriter
	PipelineReader
}

type PipelineHandler struct {
	pipelineService PipelineServicer
	buildService    BuildServicer
}

func NewPipelineHandler(pipelineService PipelineServicer, buildService BuildServicer) *PipelineHandler {
	return &PipelineHandler{pipelineService: pipelineService, buildService: buildService}
}

func (h *PipelineHandler) PostProject(c echo.Context) error {
	p := new(ProjectParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid project data")
	}
	pr, err := h.pipelineService.CreateProject(c.Request().Context(), p.Name, p.Description)
	if err != nil {
		return serviceError(err, "unable to create project")
	}
	return c.JSON(http.StatusCreated, pr)
}

func (h *PipelineHandler) GetProjects(c echo.Context) error {
	projects, err := h.pipelineService.ListProjects(c.Request().Context())
	if err != nil {
		return serviceError(err, "unable to list projects")
	}
	return c.JSON(http.StatusOK, projects)
}

func (h *PipelineHandler) PostPipeline(c echo.Context) error {
	p := new(PipelineParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline data")
	}
	pl, err := h.pipelineService.CreatePipeline(
		c.Request().Context(), p.ProjectID, p.Name, p.Description, getCtxUserID(c),
	)
	if err != nil {
		return serviceError(err, "unable to create pipeline")
	}
	return c.JSON(http.StatusCreated, pl)
}

// PostImportPipeline creates a pipeline from a YAML definition sent as the
// request body.
func (h *PipelineHandler) PostImportPipeline(c echo.Context) error {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxDefinitionSize))
	if err != nil {
		return newError(err, http.StatusBadRequest, "unable to read definition")
	}
	p, err := h.pipelineService.ImportPipeline(c.Request().Context(), data, getCtxUserID(c))
	if err != nil {
		return serviceError(err, "unable to import pipeline")
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *PipelineHandler) GetPipelines(c echo.Context) error {
	pipelines, err := h.pipelineService.ListPipelines(c.Request().Context())
	if err != nil {
		return serviceError(err, "unable to list pipelines")
	}
	return c.JSON(http.StatusOK, pipelines)
}

func (h *PipelineHandler) GetPipeline(c echo.Context) error {
	p := new(PipelineIDParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline id")
	}
	pl, err := h.pipelineService.GetPipeline(c.Request().Context(), p.PipelineID)
	if err != nil {
		return serviceError(err, "unable to read pipeline")
	}
	return c.JSON(http.StatusOK, pl)
}

func (h *PipelineHandler) PostStage(c echo.Context) error {
	p := new(PipelineIDParams)
	if err := (&echo.DefaultBinder{}).BindPathParams(c, p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline id")
	}
	in := new(service.StageInput)
	if err := c.Bind(in); err != nil {
		return newError(err, http.StatusBadRequest, "invalid stage data")
	}
	st, err := h.pipelineService.AddStage(c.Request().Context(), p.PipelineID, *in)
	if err != nil {
		return serviceError(err, "unable to add stage")
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *PipelineHandler) PatchPipelineSchedule(c echo.Context) error {
	p := new(ScheduleParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid schedule data")
	}
	if err := h.pipelineService.UpdatePipelineSchedule(
		c.Request().Context(), p.PipelineID, p.Schedule, p.ScheduleBranch,
	); err != nil {
		return serviceError(err, "unable to update schedule")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *PipelineHandler) PatchPipelineActive(c echo.Context) error {
	p := new(ActiveParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline data")
	}
	if err := h.pipelineService.SetPipelineActive(c.Request().Context(), p.PipelineID, p.Active); err != nil {
		return serviceError(err, "unable to update pipeline")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *PipelineHandler) DeletePipeline(c echo.Context) error {
	p := new(PipelineIDParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline id")
	}
	if err := h.pipelineService.DeletePipeline(c.Request().Context(), p.PipelineID); err != nil {
		return serviceError(err, "unable to delete pipeline")
	}
	return c.NoContent(http.StatusNoContent)
}

// PostWebhookTrigger starts a build of branch for callers such as git
// hosting webhooks.
func (h *PipelineHandler) PostWebhookTrigger(c echo.Context) error {
	p := new(WebhookParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline data")
	}
	if p.Branch == "" {
		p.Branch = internal.DefaultVersion
	}
	b, err := h.buildService.StartBuild(c.Request().Context(), p.PipelineID, p.Branch, getCtxUserID(c))
	if err != nil {
		return serviceError(err, "unable to start build")
	}
	return c.JSON(http.StatusAccepted, map[string]string{"build_id": b.BuildID})
}
