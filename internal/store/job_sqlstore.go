package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type JobSQLStore struct {
	rdb, rwdb *sql.DB
}

func NewJobSQLStore(rdb, rwdb *sql.DB) *JobSQLStore {
	return &JobSQLStore{rdb, rwdb}
}

func (store *JobSQLStore) CreateJob(
	ctx context.Context,
	credentialID int64,
	pipelineID *int64,
	name, description, jobURL string,
) (*Job, error) {
	j := &Job{
		JobCredentialID: credentialID,
		JobPipelineID:   pipelineID,
		Name:            name,
		Description:     description,
		JobURL:          jobURL,
		Active:          true,
		CreatedOn:       time.Now().UTC(),
	}
	query := `insert into jobs (
		job_credential_id,
		job_pipeline_id,
		name,
		description,
		job_url,
		active,
		created_on
	)
	values ($1, $2, $3, $4, $5, $6, $7)
	returning job_id`
	if err := sqlscan.Get(
		ctx, store.rwdb, j, query,
		j.JobCredentialID,
		j.JobPipelineID,
		j.Name,
		j.Description,
		j.JobURL,
		j.Active,
		j.CreatedOn,
	); err != nil {
		return nil, err
	}
	return j, nil
}

func (store *JobSQLStore) ReadJobByID(ctx context.Context, id int64) (*Job, error) {
	j := new(Job)
	query := "select * from jobs where job_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, j, query, id); err != nil {
		return nil, err
	}
	return j, nil
}

func (store *JobSQLStore) ReadJobByName(ctx context.Context, name string) (*Job, error) {
	j := new(Job)
	query := "select * from jobs where name = $1"
	if err := sqlscan.Get(ctx, store.rdb, j, query, name); err != nil {
		return nil, err
	}
	return j, nil
}

func (store *JobSQLStore) ListJobs(ctx context.Context, activeOnly bool) ([]*Job, error) {
	query := `select j.*,
		(select count(*) from job_parameters jp where jp.parameter_job_id = j.job_id) as parameter_count
	from jobs j`
	args := []any{}
	if activeOnly {
		query += " where j.active = $1"
		args = append(args, true)
	}
	query += " order by j.name"
	jobs := make([]*Job, 0)
	err := sqlscan.Select(ctx, store.rdb, &jobs, query, args...)
	return jobs, err
}

func (store *JobSQLStore) DeleteJob(ctx context.Context, id int64) error {
	query := "delete from jobs where job_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

// ReplaceJobParameters swaps the stored parameter definitions of a job for
// params in a single transaction.
func (store *JobSQLStore) ReplaceJobParameters(
	ctx context.Context,
	jobID int64,
	params []JobParameter,
) ([]JobParameter, error) {
	tx, err := store.rwdb.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx, "delete from job_parameters where parameter_job_id = $1", jobID,
	); err != nil {
		return nil, err
	}

	query := `insert into job_parameters (
		parameter_job_id,
		name,
		display_name,
		parameter_type,
		default_value,
		choices,
		required
	)
	values ($1, $2, $3, $4, $5, $6, $7)
	returning job_parameter_id`
	stored := make([]JobParameter, len(params))
	for i, p := range params {
		p.ParameterJobID = jobID
		if p.Choices == nil {
			p.Choices = StringList{}
		}
		if err := sqlscan.Get(
			ctx, tx, &p, query,
			p.ParameterJobID,
			p.Name,
			p.DisplayName,
			p.ParameterType,
			p.DefaultValue,
			p.Choices,
			p.Required,
		); err != nil {
			return nil, err
		}
		stored[i] = p
	}
	return stored, tx.Commit()
}

func (store *JobSQLStore) ListJobParameters(
	ctx context.Context,
	jobID int64,
) ([]JobParameter, error) {
	query := `select * from job_parameters
	where parameter_job_id = $1
	order by job_parameter_id`
	params := make([]JobParameter, 0)
	err := sqlscan.Select(ctx, store.rdb, &params, query, jobID)
	return params, err
}

func (store *JobSQLStore) CreateJobBuild(
	ctx context.Context,
	jobID int64,
	buildID string,
	buildNumber int64,
	externalURL string,
	parameters StringMap,
	triggeredBy *int64,
	startedOn time.Time,
) (*JobBuild, error) {
	jb := &JobBuild{
		BuildID:       buildID,
		JobBuildJobID: jobID,
		BuildNumber:   &buildNumber,
		ExternalURL:   externalURL,
		Parameters:    parameters,
		Status:        StatusRunning,
		TriggeredBy:   triggeredBy,
		CreatedOn:     startedOn,
		StartedOn:     &startedOn,
	}
	query := `insert into job_builds (
		build_id,
		job_build_job_id,
		build_number,
		external_url,
		parameters,
		status,
		triggered_by,
		created_on,
		started_on
	)
	values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	returning job_build_id`
	if err := sqlscan.Get(
		ctx, store.rwdb, jb, query,
		jb.BuildID,
		jb.JobBuildJobID,
		jb.BuildNumber,
		jb.ExternalURL,
		jb.Parameters,
		jb.Status,
		jb.TriggeredBy,
		jb.CreatedOn,
		jb.StartedOn,
	); err != nil {
		return nil, err
	}
	return jb, nil
}

const selectJobBuild = `select jb.*, j.name as job_name
	from job_builds jb
	join jobs j
	on jb.job_build_job_id = j.job_id`

func (store *JobSQLStore) ReadJobBuildByID(ctx context.Context, id int64) (*JobBuild, error) {
	jb := new(JobBuild)
	query := selectJobBuild + " where jb.job_build_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, jb, query, id); err != nil {
		return nil, err
	}
	return jb, nil
}

func (store *JobSQLStore) ReadJobBuildByBuildID(
	ctx context.Context,
	buildID string,
) (*JobBuild, error) {
	jb := new(JobBuild)
	query := selectJobBuild + " where jb.build_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, jb, query, buildID); err != nil {
		return nil, err
	}
	return jb, nil
}

// UpdateJobBuildProgress stores the latest polled status and log of a job
// build that has not reached a terminal status yet.
func (store *JobSQLStore) UpdateJobBuildProgress(
	ctx context.Context,
	id int64,
	status BuildStatus,
	log string,
) error {
	query := `update job_builds
	set status = $1,
		log = $2
	where job_build_id = $3
	and status in ($4, $5)`
	_, err := store.rwdb.ExecContext(ctx, query, status, log, id, StatusPending, StatusRunning)
	return err
}

// FinishJobBuild moves a job build to a terminal status. It reports false
// when the job build was already terminal.
func (store *JobSQLStore) FinishJobBuild(
	ctx context.Context,
	id int64,
	status BuildStatus,
	log *string,
	finishedOn time.Time,
	duration int64,
) (bool, error) {
	query := `update job_builds
	set status = $1,
		log = coalesce($2, log),
		finished_on = $3,
		duration = $4
	where job_build_id = $5
	and status in ($6, $7)`
	return execAffected(
		ctx, store.rwdb, query,
		status, log, finishedOn, duration, id,
		StatusPending, StatusRunning,
	)
}

func (store *JobSQLStore) ListJobBuilds(
	ctx context.Context,
	filter JobBuildFilter,
) ([]*JobBuild, error) {
	var (
		where []string
		args  []any
	)
	if filter.JobID != nil {
		args = append(args, *filter.JobID)
		where = append(where, fmt.Sprintf("jb.job_build_job_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("jb.status = $%d", len(args)))
	}
	query := `select
		jb.job_build_id,
		jb.build_id,
		jb.job_build_job_id,
		jb.build_number,
		jb.external_url,
		jb.parameters,
		jb.status,
		jb.triggered_by,
		jb.created_on,
		jb.started_on,
		jb.finished_on,
		jb.duration,
		j.name as job_name
	from job_builds jb
	join jobs j
	on jb.job_build_job_id = j.job_id`
	if len(where) > 0 {
		query += "\n\twhere " + strings.Join(where, " and ")
	}
	query += "\n\torder by jb.created_on desc, jb.job_build_id desc"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" limit $%d offset $%d", len(args)-1, len(args))
	}
	builds := make([]*JobBuild, 0)
	err := sqlscan.Select(ctx, store.rdb, &builds, query, args...)
	return builds, err
}

func (store *JobSQLStore) ListJobBuildsByStatus(
	ctx context.Context,
	status BuildStatus,
) ([]*JobBuild, error) {
	query := "select * from job_builds where status = $1 order by job_build_id"
	builds := make([]*JobBuild, 0)
	err := sqlscan.Select(ctx, store.rdb, &builds, query, status)
	return builds, err
}
