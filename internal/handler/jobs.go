package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/qsplatform/buildcore/internal/service"
	"github.com/qsplatform/buildcore/internal/store"
)

func SetupJobRoutes(g *echo.Group, jobService JobServicer) {
	h := NewJobHandler(jobService)
	g.POST("/jobs", h.PostJob)
	g.GET("/jobs", h.GetJobs)
	g.DELETE("/jobs/:job_id", h.DeleteJob)
	g.GET("/jobs/:job_id/parameters", h.GetJobParameters)
	g.POST("/jobs/:job_id/parameters/parse", h.PostParseJobParameters)
	g.POST("/jobs/:job_id/builds", h.PostJobBuild)
	g.GET("/job-builds", h.GetJobBuilds)
	g.GET("/job-builds/:build_id", h.GetJobBuild)
}

type JobServicer interface {
	CreateJob(ctx context.Context, in service.JobInput) (*store.Job, error)
	ListJobs(ctx context.Context, activeOnly bool) ([]*store.Job, error)
	DeleteJob(ctx context.Context, jobID int64) error
	ListJobParameters(ctx context.Context, jobID int64) ([]store.JobParameter, error)
	ParseJobParameters(ctx context.Context, jobID int64) ([]store.JobParameter, error)
	TriggerJob(ctx context.Context, jobID int64, params map[string]string, triggeredBy *int64) (*store.JobBuild, error)
	GetJobBuild(ctx context.Context, buildID string) (*store.JobBuild, error)
	ListJobBuilds(ctx context.Context, filter store.JobBuildFilter) ([]*store.JobBuild, error)
}

type JobHandler struct {
	jobService JobServicer
}

func NewJobHandler(jobService JobServicer) *JobHandler {
	return &JobHandler{jobService}
}

func (h *JobHandler) PostJob(c echo.Context) error {
	in := new(service.JobInput)
	if err := c.Bind(in); err != nil {
		return newError(err, http.StatusBadRequest, "invalid job data")
	}
	j, err := h.jobService.CreateJob(c.Request().Context(), *in)
	if err != nil {
		return serviceError(err, "unable to create job")
	}
	return c.JSON(http.StatusCreated, j)
}

func (h *JobHandler) GetJobs(c echo.Context) error {
	jobs, err := h.jobService.ListJobs(c.Request().Context(), c.QueryParam("active") == "true")
	if err != nil {
		return serviceError(err, "unable to list jobs")
	}
	return c.JSON(http.StatusOK, jobs)
}

func (h *JobHandler) DeleteJob(c echo.Context) error {
	p := new(JobIDParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid job id")
	}
	if err := h.jobService.DeleteJob(c.Request().Context(), p.JobID); err != nil {
		return serviceError(err, "unable to delete job")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *JobHandler) GetJobParameters(c echo.Context) error {
	p := new(JobIDParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid job id")
	}
	params, err := h.jobService.ListJobParameters(c.Request().Context(), p.JobID)
	if err != nil {
		return serviceError(err, "unable to list job parameters")
	}
	return c.JSON(http.StatusOK, params)
}

// PostParseJobParameters refreshes the stored parameter definitions from
// the CI server.
func (h *JobHandler) PostParseJobParameters(c echo.Context) error {
	p := new(JobIDParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid job id")
	}
	params, err := h.jobService.ParseJobParameters(c.Request().Context(), p.JobID)
	if err != nil {
		return serviceError(err, "unable to parse job parameters")
	}
	return c.JSON(http.StatusOK, params)
}

func (h *JobHandler) PostJobBuild(c echo.Context) error {
	p := new(TriggerJobParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid job build data")
	}
	jb, err := h.jobService.TriggerJob(c.Request().Context(), p.JobID, p.Parameters, getCtxUserID(c))
	if err != nil {
		return serviceError(err, "unable to trigger job")
	}
	return c.JSON(http.StatusAccepted, jb)
}

func (h *JobHandler) GetJobBuild(c echo.Context) error {
	p := new(BuildIDParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid build id")
	}
	jb, err := h.jobService.GetJobBuild(c.Request().Context(), p.BuildID)
	if err != nil {
		return serviceError(err, "unable to read job build")
	}
	return c.JSON(http.StatusOK, jb)
}

func (h *JobHandler) GetJobBuilds(c echo.Context) error {
	p := new(ListJobBuildsParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid query")
	}
	status, ok := parseStatus(p.Status)
	if !ok {
		return newError(nil, http.StatusBadRequest, "invalid status")
	}
	filter := store.JobBuildFilter{Status: status}
	if p.JobID != 0 {
		filter.JobID = &p.JobID
	}
	filter.Limit, filter.Offset = pageBounds(p.Page)

	builds, err := h.jobService.ListJobBuilds(c.Request().Context(), filter)
	if err != nil {
		return serviceError(err, "unable to list job builds")
	}
	return c.JSON(http.StatusOK, builds)
}
