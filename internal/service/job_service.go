package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qsplatform/buildcore/internal"
	"github.com/qsplatform/buildcore/internal/jenkins"
	"github.com/qsplatform/buildcore/internal/queue"
	"github.com/qsplatform/buildcore/internal/store"
	"go.uber.org/zap"
)

type JobWriter interface {
	CreateJob(context.Context, int64, *int64, string, string, string) (*store.Job, error)
	DeleteJob(context.Context, int64) error
	ReplaceJobParameters(context.Context, int64, []store.JobParameter) ([]store.JobParameter, error)
	CreateJobBuild(
		context.Context,
		int64,
		string,
		int64,
		string,
		store.StringMap,
		*int64,
		time.Time,
	) (*store.JobBuild, error)
	UpdateJobBuildProgress(context.Context, int64, store.BuildStatus, string) error
	FinishJobBuild(context.Context, int64, store.BuildStatus, *string, time.Time, int64) (bool, error)
}

type JobReader interface {
	ReadJobByID(context.Context, int64) (*store.Job, error)
	ReadJobByName(context.Context, string) (*store.Job, error)
	ListJobs(context.Context, bool) ([]*store.Job, error)
	ListJobParameters(context.Context, int64) ([]store.JobParameter, error)
	ReadJobBuildByID(context.Context, int64) (*store.JobBuild, error)
	ReadJobBuildByBuildID(context.Context, string) (*store.JobBuild, error)
	ListJobBuilds(context.Context, store.JobBuildFilter) ([]*store.JobBuild, error)
	ListJobBuildsByStatus(context.Context, store.BuildStatus) ([]*store.JobBuild, error)
}

type JobStore interface {
	JobWriter
	JobReader
}

type JobInput struct {
	CredentialID    int64  `json:"credential_id"`
	PipelineID      *int64 `json:"pipeline_id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	JobURL          string `json:"job_url"`
	ParseParameters bool   `json:"parse_parameters"`
}

type JobService struct {
	jobStore    JobStore
	credentials CredentialReader
	clients     ClientFactory
	queue       Enqueuer
	uuidGen     UUIDGenerator
	logger      *zap.Logger
}

func NewJobService(
	jobStore JobStore,
	credentials CredentialReader,
	clients ClientFactory,
	q Enqueuer,
	uuidGen UUIDGenerator,
	logger *zap.Logger,
) *JobService {
	return &JobService{
		jobStore:    jobStore,
		credentials: credentials,
		clients:     clients,
		queue:       q,
		uuidGen:     uuidGen,
		logger:      logger,
	}
}

// CreateJob stores a job definition. With ParseParameters the parameter
// definitions are fetched before anything is written, so a CI server
// failure leaves no job behind.
func (s *JobService) CreateJob(ctx context.Context, in JobInput) (*store.Job, error) {
	if in.Name == "" {
		return nil, NewInvalidInputError("name", "required")
	}
	if in.JobURL == "" {
		return nil, NewInvalidInputError("job_url", "required")
	}
	if !strings.HasSuffix(in.JobURL, "/") {
		in.JobURL += "/"
	}
	if err := s.activeCredential(ctx, in.CredentialID); err != nil {
		return nil, err
	}

	var params []store.JobParameter
	if in.ParseParameters {
		var err error
		params, err = s.fetchParameters(ctx, in.CredentialID, in.JobURL)
		if err != nil {
			return nil, err
		}
	}

	j, err := s.jobStore.CreateJob(ctx, in.CredentialID, in.PipelineID, in.Name, in.Description, in.JobURL)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		stored, err := s.jobStore.ReplaceJobParameters(ctx, j.JobID, params)
		if err != nil {
			return nil, err
		}
		j.ParameterCount = int64(len(stored))
	}
	s.logger.Info("job created", zap.String("job", j.Name), zap.Int64("parameters", j.ParameterCount))
	return j, nil
}

func (s *JobService) GetJob(ctx context.Context, jobID int64) (*store.Job, error) {
	j, err := s.jobStore.ReadJobByID(ctx, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("job", jobID)
	}
	return j, err
}

func (s *JobService) ListJobs(ctx context.Context, activeOnly bool) ([]*store.Job, error) {
	return s.jobStore.ListJobs(ctx, activeOnly)
}

func (s *JobService) DeleteJob(ctx context.Context, jobID int64) error {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return err
	}
	return s.jobStore.DeleteJob(ctx, jobID)
}

func (s *JobService) ListJobParameters(ctx context.Context, jobID int64) ([]store.JobParameter, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.jobStore.ListJobParameters(ctx, jobID)
}

// ParseJobParameters refreshes the stored parameter definitions of a job
// from the CI server.
func (s *JobService) ParseJobParameters(ctx context.Context, jobID int64) ([]store.JobParameter, error) {
	j, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	params, err := s.fetchParameters(ctx, j.JobCredentialID, j.JobURL)
	if err != nil {
		return nil, err
	}
	return s.jobStore.ReplaceJobParameters(ctx, jobID, params)
}

// StartJobBuild triggers a build of the job on the CI server and records it
// as running. Missing values are filled from parameter defaults.
func (s *JobService) StartJobBuild(
	ctx context.Context,
	jobID int64,
	params map[string]string,
	triggeredBy *int64,
) (*store.JobBuild, error) {
	j, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !j.Active {
		return nil, NewNotFoundError("job", jobID)
	}
	defs, err := s.jobStore.ListJobParameters(ctx, jobID)
	if err != nil {
		return nil, err
	}
	values, err := resolveParameters(defs, params)
	if err != nil {
		return nil, err
	}

	client, err := s.clients.ClientFor(ctx, j.JobCredentialID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFoundError("credential", j.JobCredentialID)
		}
		return nil, err
	}
	number, err := client.TriggerBuild(ctx, j.JobURL, values)
	if err != nil {
		return nil, err
	}
	if number == 0 {
		return nil, &jenkins.ServiceError{Op: "trigger build", StatusCode: 201, Err: jenkins.ErrNoData}
	}

	jb, err := s.jobStore.CreateJobBuild(
		ctx,
		j.JobID,
		s.uuidGen.GenerateUUID(),
		number,
		fmt.Sprintf("%s%d/", j.JobURL, number),
		store.StringMap(values),
		triggeredBy,
		time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	jb.JobName = j.Name
	s.logger.Info("job build triggered",
		zap.String("job", j.Name),
		zap.Int64("number", number),
		zap.String("job_build_id", jb.BuildID),
	)
	return jb, nil
}

// TriggerJob starts a job build and hands it to the tracker through the
// task queue.
func (s *JobService) TriggerJob(
	ctx context.Context,
	jobID int64,
	params map[string]string,
	triggeredBy *int64,
) (*store.JobBuild, error) {
	jb, err := s.StartJobBuild(ctx, jobID, params, triggeredBy)
	if err != nil {
		return nil, err
	}
	task := queue.Task{
		Kind:    queue.KindTrackJob,
		RefID:   jb.JobBuildID,
		Timeout: internal.Config.TrackTimeoutSeconds.Duration(),
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		// the build runs remotely regardless, reconciliation picks it up
		s.logger.Warn("enqueue job tracking failed", zap.String("job_build_id", jb.BuildID), zap.Error(err))
	}
	return jb, nil
}

func (s *JobService) GetJobBuild(ctx context.Context, buildID string) (*store.JobBuild, error) {
	jb, err := s.jobStore.ReadJobBuildByBuildID(ctx, buildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("job build", buildID)
	}
	return jb, err
}

func (s *JobService) ListJobBuilds(
	ctx context.Context,
	filter store.JobBuildFilter,
) ([]*store.JobBuild, error) {
	return s.jobStore.ListJobBuilds(ctx, filter)
}

func (s *JobService) activeCredential(ctx context.Context, credentialID int64) error {
	c, err := s.credentials.ReadCredentialByID(ctx, credentialID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !c.Active) {
		return NewNotFoundError("credential", credentialID)
	}
	return err
}

func (s *JobService) fetchParameters(
	ctx context.Context,
	credentialID int64,
	jobURL string,
) ([]store.JobParameter, error) {
	client, err := s.clients.ClientFor(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	infos, err := client.GetJobParameters(ctx, jobURL)
	if errors.Is(err, jenkins.ErrNoData) {
		return []store.JobParameter{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching job parameters: %w", err)
	}
	params := make([]store.JobParameter, 0, len(infos))
	for _, info := range infos {
		params = append(params, store.JobParameter{
			Name:          info.Name,
			DisplayName:   info.DisplayName,
			ParameterType: info.Type,
			DefaultValue:  info.DefaultValue,
			Choices:       store.StringList(info.Choices),
			Required:      true,
		})
	}
	return params, nil
}

// resolveParameters merges the given values over parameter defaults. A
// required parameter that ends up empty is rejected.
func resolveParameters(defs []store.JobParameter, given map[string]string) (map[string]string, error) {
	values := make(map[string]string, len(defs)+len(given))
	for k, v := range given {
		values[k] = v
	}
	for _, p := range defs {
		if v, ok := values[p.Name]; ok && v != "" {
			continue
		}
		if p.DefaultValue != "" {
			values[p.Name] = p.DefaultValue
			continue
		}
		if p.Required {
			return nil, NewInvalidInputError(p.Name, "required parameter has no value")
		}
	}
	return values, nil
}
