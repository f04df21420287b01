package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/qsplatform/buildcore/internal"
	"github.com/qsplatform/buildcore/internal/store"
	"github.com/qsplatform/buildcore/internal/util"
	"go.uber.org/zap"
)

type PipelineWriter interface {
	CreatePipeline(context.Context, int64, string, string, *int64) (*store.Pipeline, error)
	UpdatePipelineActive(context.Context, int64, bool) error
	UpdatePipelineSchedule(context.Context, int64, *string, *string, *string) error
	UpdatePipelineScheduleJobID(context.Context, int64, *string) error
	DeletePipeline(context.Context, int64) error
	CreateStage(
		context.Context,
		int64,
		string,
		store.StageType,
		string,
		int64, int64,
		*int64,
	) (*store.Stage, error)
	DeleteStage(context.Context, int64) error
}

type PipelineReader interface {
	ReadPipelineByID(context.Context, int64) (*store.Pipeline, error)
	ListPipelineStages(context.Context, int64) ([]store.Stage, error)
}

type PipelineStore interface {
	PipelineWriter
	PipelineReader
	ReadStageByID(context.Context, int64) (*store.Stage, error)
	ListPipelines(context.Context) ([]*store.Pipeline, error)
	ListScheduledPipelines(context.Context) ([]*store.Pipeline, error)
}

type ProjectStore interface {
	CreateProject(context.Context, string, string) (*store.Project, error)
	ReadProjectByID(context.Context, int64) (*store.Project, error)
	ReadProjectByName(context.Context, string) (*store.Project, error)
	ListProjects(context.Context) ([]*store.Project, error)
}

type JobLookup interface {
	ReadJobByID(context.Context, int64) (*store.Job, error)
	ReadJobByName(context.Context, string) (*store.Job, error)
}

type BuildStarter interface {
	StartBuild(context.Context, int64, string, *int64) (*store.BuildRecord, error)
}

type StageInput struct {
	Name           string          `json:"name"`
	StageType      store.StageType `json:"stage_type"`
	Script         string          `json:"script"`
	TimeoutSeconds int64           `json:"timeout_seconds"`
	Order          int64           `json:"order"`
	JobID          *int64          `json:"job_id"`
}

type PipelineService struct {
	pipelineStore PipelineStore
	projectStore  ProjectStore
	jobs          JobLookup
	builds        BuildStarter
	scheduler     gocron.Scheduler
	logger        *zap.Logger
}

func NewPipelineService(
	pipelineStore PipelineStore,
	projectStore ProjectStore,
	jobs JobLookup,
	builds BuildStarter,
	scheduler gocron.Scheduler,
	logger *zap.Logger,
) *PipelineService {
	return &PipelineService{
		pipelineStore: pipelineStore,
		projectStore:  projectStore,
		jobs:          jobs,
		builds:        builds,
		scheduler:     scheduler,
		logger:        logger,
	}
}

func (s *PipelineService) CreateProject(
	ctx context.Context,
	name, description string,
) (*store.Project, error) {
	if name == "" {
		return nil, NewInvalidInputError("name", "required")
	}
	return s.projectStore.CreateProject(ctx, name, description)
}

func (s *PipelineService) ListProjects(ctx context.Context) ([]*store.Project, error) {
	return s.projectStore.ListProjects(ctx)
}

func (s *PipelineService) CreatePipeline(
	ctx context.Context,
	projectID int64,
	name, description string,
	createdBy *int64,
) (*store.Pipeline, error) {
	if name == "" {
		return nil, NewInvalidInputError("name", "required")
	}
	pr, err := s.projectStore.ReadProjectByID(ctx, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("project", projectID)
	}
	if err != nil {
		return nil, err
	}
	p, err := s.pipelineStore.CreatePipeline(ctx, projectID, name, description, createdBy)
	if err != nil {
		return nil, err
	}
	p.ProjectName = pr.Name
	return p, nil
}

// GetPipeline returns the pipeline with its stages in execution order.
func (s *PipelineService) GetPipeline(ctx context.Context, pipelineID int64) (*store.Pipeline, error) {
	p, err := s.pipelineStore.ReadPipelineByID(ctx, pipelineID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("pipeline", pipelineID)
	}
	if err != nil {
		return nil, err
	}
	stages, err := s.pipelineStore.ListPipelineStages(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	p.Stages = stages
	return p, nil
}

func (s *PipelineService) ListPipelines(ctx context.Context) ([]*store.Pipeline, error) {
	return s.pipelineStore.ListPipelines(ctx)
}

// AddStage appends a stage to the pipeline. An empty type is inferred from
// the stage name and a zero order places the stage last.
func (s *PipelineService) AddStage(
	ctx context.Context,
	pipelineID int64,
	in StageInput,
) (*store.Stage, error) {
	p, err := s.GetPipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, NewInvalidInputError("name", "required")
	}
	if in.StageType == "" {
		in.StageType = store.InferStageType(in.Name)
	}
	if !in.StageType.Valid() {
		return nil, NewInvalidInputError("stage_type", fmt.Sprintf("unknown stage type %q", in.StageType))
	}
	if in.StageType == store.StageExternalJob {
		if in.JobID == nil {
			return nil, NewInvalidInputError("job_id", "required for external_job stages")
		}
		if _, err := s.jobs.ReadJobByID(ctx, *in.JobID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, NewNotFoundError("job", *in.JobID)
			}
			return nil, err
		}
	}
	if in.TimeoutSeconds <= 0 {
		in.TimeoutSeconds = internal.DefaultStageTimeoutSeconds
	}
	if in.Order <= 0 {
		in.Order = 1
		for _, st := range p.Stages {
			in.Order = max(in.Order, st.StageOrder+1)
		}
	}
	return s.pipelineStore.CreateStage(
		ctx, pipelineID, in.Name, in.StageType, in.Script, in.TimeoutSeconds, in.Order, in.JobID,
	)
}

func (s *PipelineService) DeleteStage(ctx context.Context, pipelineID, stageID int64) error {
	st, err := s.pipelineStore.ReadStageByID(ctx, stageID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && st.StagePipelineID != pipelineID) {
		return NewNotFoundError("stage", stageID)
	}
	if err != nil {
		return err
	}
	return s.pipelineStore.DeleteStage(ctx, stageID)
}

func (s *PipelineService) SetPipelineActive(ctx context.Context, pipelineID int64, active bool) error {
	if _, err := s.GetPipeline(ctx, pipelineID); err != nil {
		return err
	}
	return s.pipelineStore.UpdatePipelineActive(ctx, pipelineID, active)
}

func (s *PipelineService) DeletePipeline(ctx context.Context, pipelineID int64) error {
	p, err := s.GetPipeline(ctx, pipelineID)
	if err != nil {
		return err
	}
	s.removeScheduledJob(p)
	return s.pipelineStore.DeletePipeline(ctx, pipelineID)
}

// ImportPipeline creates a pipeline and its stages from a YAML definition.
// The project is created when it does not exist yet.
func (s *PipelineService) ImportPipeline(
	ctx context.Context,
	data []byte,
	createdBy *int64,
) (*store.Pipeline, error) {
	def, err := ParsePipelineDefinition(data)
	if err != nil {
		return nil, err
	}

	pr, err := s.projectStore.ReadProjectByName(ctx, def.Project)
	if errors.Is(err, sql.ErrNoRows) {
		pr, err = s.projectStore.CreateProject(ctx, def.Project, "")
	}
	if err != nil {
		return nil, err
	}

	p, err := s.pipelineStore.CreatePipeline(ctx, pr.ProjectID, def.Name, def.Description, createdBy)
	if err != nil {
		return nil, err
	}
	if err := s.importStages(ctx, p.PipelineID, def.Stages); err != nil {
		if delErr := s.pipelineStore.DeletePipeline(context.WithoutCancel(ctx), p.PipelineID); delErr != nil {
			s.logger.Error("removing partially imported pipeline", zap.Error(delErr))
		}
		return nil, err
	}
	if def.Schedule != nil {
		if err := s.UpdatePipelineSchedule(ctx, p.PipelineID, def.Schedule, def.ScheduleBranch); err != nil {
			return nil, err
		}
	}

	s.logger.Info("pipeline imported",
		zap.String("project", pr.Name),
		zap.String("pipeline", p.Name),
		zap.Int("stages", len(def.Stages)),
	)
	return s.GetPipeline(ctx, p.PipelineID)
}

func (s *PipelineService) importStages(
	ctx context.Context,
	pipelineID int64,
	stages []StageDefinition,
) error {
	for i, sd := range stages {
		in := StageInput{
			Name:           sd.Name,
			StageType:      store.StageType(sd.Type),
			Script:         sd.Script,
			TimeoutSeconds: sd.TimeoutSeconds,
			Order:          int64(i + 1),
		}
		if sd.Job != "" {
			j, err := s.jobs.ReadJobByName(ctx, sd.Job)
			if errors.Is(err, sql.ErrNoRows) {
				return NewNotFoundError("job", sd.Job)
			}
			if err != nil {
				return err
			}
			in.JobID = &j.JobID
			if in.StageType == "" {
				in.StageType = store.StageExternalJob
			}
		}
		if _, err := s.AddStage(ctx, pipelineID, in); err != nil {
			return err
		}
	}
	return nil
}

// UpdatePipelineSchedule replaces the cron schedule of a pipeline. A nil
// schedule removes it.
func (s *PipelineService) UpdatePipelineSchedule(
	ctx context.Context,
	pipelineID int64,
	schedule, branch *string,
) error {
	p, err := s.GetPipeline(ctx, pipelineID)
	if err != nil {
		return err
	}
	s.removeScheduledJob(p)

	if schedule == nil || *schedule == "" {
		return s.pipelineStore.UpdatePipelineSchedule(ctx, pipelineID, nil, nil, nil)
	}
	if branch == nil || *branch == "" {
		branch = util.AsPtr(internal.DefaultVersion)
	}
	jobID, err := s.SchedulePipelineBuild(p.PipelineID, *schedule, *branch)
	if err != nil {
		return NewInvalidInputError("schedule", err.Error())
	}
	return s.pipelineStore.UpdatePipelineSchedule(ctx, pipelineID, schedule, branch, jobID)
}

// SchedulePipelines registers the cron jobs of every scheduled pipeline.
func (s *PipelineService) SchedulePipelines(ctx context.Context) error {
	pipelines, err := s.pipelineStore.ListScheduledPipelines(ctx)
	if err != nil {
		return err
	}
	for _, p := range pipelines {
		branch := internal.DefaultVersion
		if p.ScheduleBranch != nil {
			branch = *p.ScheduleBranch
		}
		jobID, err := s.SchedulePipelineBuild(p.PipelineID, *p.Schedule, branch)
		if err != nil {
			s.logger.Error("scheduling pipeline", zap.Int64("pipeline_id", p.PipelineID), zap.Error(err))
			continue
		}
		if err := s.pipelineStore.UpdatePipelineScheduleJobID(ctx, p.PipelineID, jobID); err != nil {
			return err
		}
	}
	return nil
}

func (s *PipelineService) SchedulePipelineBuild(
	pipelineID int64,
	schedule, branch string,
) (*string, error) {
	if s.scheduler == nil {
		return nil, nil
	}
	job, err := s.scheduler.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(func() {
			if _, err := s.builds.StartBuild(context.Background(), pipelineID, branch, nil); err != nil {
				s.logger.Error("scheduled build not started",
					zap.Int64("pipeline_id", pipelineID),
					zap.Error(err),
				)
			}
		}))
	if err != nil {
		return nil, fmt.Errorf("error scheduling pipeline job: %w", err)
	}
	return util.AsPtr(job.ID().String()), nil
}

func (s *PipelineService) removeScheduledJob(p *store.Pipeline) {
	if s.scheduler == nil || p.ScheduleJobID == nil {
		return
	}
	id, err := uuid.Parse(*p.ScheduleJobID)
	if err != nil {
		return
	}
	if err := s.scheduler.RemoveJob(id); err != nil {
		s.logger.Warn("unable to remove existing schedule", zap.Error(err))
	}
}
