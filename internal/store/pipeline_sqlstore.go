package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type PipelineSQLStore struct {
	rdb, rwdb *sql.DB
}

func NewPipelineSQLStore(rdb, rwdb *sql.DB) *PipelineSQLStore {
	return &PipelineSQLStore{rdb, rwdb}
}

func (store *PipelineSQLStore) CreatePipeline(
	ctx context.Context,
	projectID int64,
	name, description string,
	createdBy *int64,
) (*Pipeline, error) {
	p := &Pipeline{
		PipelineProjectID: projectID,
		Name:              name,
		Description:       description,
		Active:            true,
		CreatedBy:         createdBy,
		CreatedOn:         time.Now().UTC(),
	}
	query := `insert into pipelines (
		pipeline_project_id,
		name,
		description,
		active,
		created_by,
		created_on
	)
	values ($1, $2, $3, $4, $5, $6)
	returning pipeline_id`
	if err := sqlscan.Get(
		ctx, store.rwdb, p, query,
		p.PipelineProjectID,
		p.Name,
		p.Description,
		p.Active,
		p.CreatedBy,
		p.CreatedOn,
	); err != nil {
		return nil, err
	}
	return p, nil
}

func (store *PipelineSQLStore) ReadPipelineByID(
	ctx context.Context,
	id int64,
) (*Pipeline, error) {
	p := new(Pipeline)
	query := `select p.*, pr.name as project_name
	from pipelines p
	join projects pr
	on p.pipeline_project_id = pr.project_id
	where p.pipeline_id = $1`
	if err := sqlscan.Get(ctx, store.rdb, p, query, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (store *PipelineSQLStore) UpdatePipelineActive(
	ctx context.Context,
	id int64,
	active bool,
) error {
	query := "update pipelines set active = $1 where pipeline_id = $2"
	_, err := store.rwdb.ExecContext(ctx, query, active, id)
	return err
}

func (store *PipelineSQLStore) UpdatePipelineSchedule(
	ctx context.Context,
	id int64,
	schedule, branch, jobID *string,
) error {
	query := `update pipelines
	set schedule = $1,
		schedule_branch = $2,
		schedule_job_id = $3
	where pipeline_id = $4`
	_, err := store.rwdb.ExecContext(ctx, query, schedule, branch, jobID, id)
	return err
}

func (store *PipelineSQLStore) UpdatePipelineScheduleJobID(
	ctx context.Context,
	id int64,
	jobID *string,
) error {
	query := "update pipelines set schedule_job_id = $1 where pipeline_id = $2"
	_, err := store.rwdb.ExecContext(ctx, query, jobID, id)
	return err
}

func (store *PipelineSQLStore) DeletePipeline(ctx context.Context, id int64) error {
	query := "delete from pipelines where pipeline_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

func (store *PipelineSQLStore) ListPipelines(ctx context.Context) ([]*Pipeline, error) {
	query := `select p.*, pr.name as project_name
	from pipelines p
	join projects pr
	on p.pipeline_project_id = pr.project_id
	order by p.pipeline_id`
	pipelines := make([]*Pipeline, 0)
	err := sqlscan.Select(ctx, store.rdb, &pipelines, query)
	return pipelines, err
}

func (store *PipelineSQLStore) ListScheduledPipelines(ctx context.Context) ([]*Pipeline, error) {
	query := `select * from pipelines
	where schedule is not null
	and active = $1`
	pipelines := make([]*Pipeline, 0)
	err := sqlscan.Select(ctx, store.rdb, &pipelines, query, true)
	return pipelines, err
}

func (store *PipelineSQLStore) CreateStage(
	ctx context.Context,
	pipelineID int64,
	name string,
	stageType StageType,
	script string,
	timeoutSeconds, order int64,
	jobID *int64,
) (*Stage, error) {
	s := &Stage{
		StagePipelineID: pipelineID,
		Name:            name,
		StageType:       stageType,
		Script:          script,
		TimeoutSeconds:  timeoutSeconds,
		StageOrder:      order,
		StageJobID:      jobID,
	}
	query := `insert into stages (
		stage_pipeline_id,
		name,
		stage_type,
		script,
		timeout_seconds,
		stage_order,
		stage_job_id
	)
	values ($1, $2, $3, $4, $5, $6, $7)
	returning stage_id`
	if err := sqlscan.Get(
		ctx, store.rwdb, s, query,
		s.StagePipelineID,
		s.Name,
		s.StageType,
		s.Script,
		s.TimeoutSeconds,
		s.StageOrder,
		s.StageJobID,
	); err != nil {
		return nil, err
	}
	return s, nil
}

func (store *PipelineSQLStore) ReadStageByID(ctx context.Context, id int64) (*Stage, error) {
	s := new(Stage)
	query := "select * from stages where stage_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, s, query, id); err != nil {
		return nil, err
	}
	return s, nil
}

func (store *PipelineSQLStore) DeleteStage(ctx context.Context, id int64) error {
	query := "delete from stages where stage_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

// ListPipelineStages returns the stages of a pipeline in execution order.
func (store *PipelineSQLStore) ListPipelineStages(
	ctx context.Context,
	pipelineID int64,
) ([]Stage, error) {
	query := `select * from stages
	where stage_pipeline_id = $1
	order by stage_order asc`
	stages := make([]Stage, 0)
	err := sqlscan.Select(ctx, store.rdb, &stages, query, pipelineID)
	return stages, err
}
