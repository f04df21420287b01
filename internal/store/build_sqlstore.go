package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type BuildSQLStore struct {
	rdb, rwdb *sql.DB
}

func NewBuildSQLStore(rdb, rwdb *sql.DB) *BuildSQLStore {
	return &BuildSQLStore{rdb, rwdb}
}

func (store *BuildSQLStore) CreateBuild(
	ctx context.Context,
	pipelineID int64,
	buildID, version string,
	triggeredBy *int64,
) (*BuildRecord, error) {
	b := &BuildRecord{
		BuildID:         buildID,
		BuildPipelineID: pipelineID,
		Version:         version,
		Status:          StatusPending,
		TriggeredBy:     triggeredBy,
		CreatedOn:       time.Now().UTC(),
		RowVersion:      1,
	}
	query := `insert into build_records (
		build_id,
		build_pipeline_id,
		version,
		status,
		triggered_by,
		created_on
	)
	values ($1, $2, $3, $4, $5, $6)
	returning build_record_id`
	if err := sqlscan.Get(
		ctx, store.rwdb, b, query,
		b.BuildID,
		b.BuildPipelineID,
		b.Version,
		b.Status,
		b.TriggeredBy,
		b.CreatedOn,
	); err != nil {
		return nil, err
	}
	return b, nil
}

const selectBuild = `select b.*, p.name as pipeline_name
	from build_records b
	join pipelines p
	on b.build_pipeline_id = p.pipeline_id`

func (store *BuildSQLStore) ReadBuildByID(ctx context.Context, id int64) (*BuildRecord, error) {
	b := new(BuildRecord)
	query := selectBuild + " where b.build_record_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, b, query, id); err != nil {
		return nil, err
	}
	return b, nil
}

func (store *BuildSQLStore) ReadBuildByBuildID(
	ctx context.Context,
	buildID string,
) (*BuildRecord, error) {
	b := new(BuildRecord)
	query := selectBuild + " where b.build_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, b, query, buildID); err != nil {
		return nil, err
	}
	return b, nil
}

func (store *BuildSQLStore) ReadBuildStatus(ctx context.Context, id int64) (BuildStatus, error) {
	var status BuildStatus
	query := "select status from build_records where build_record_id = $1"
	err := sqlscan.Get(ctx, store.rwdb, &status, query, id)
	return status, err
}

// MarkBuildRunning moves a pending build to running. started_on is only set
// when it is still empty. It reports false when the build was no longer pending.
func (store *BuildSQLStore) MarkBuildRunning(
	ctx context.Context,
	id int64,
	startedOn time.Time,
) (bool, error) {
	query := `update build_records
	set status = $1,
		started_on = coalesce(started_on, $2),
		row_version = row_version + 1
	where build_record_id = $3
	and status = $4`
	return execAffected(ctx, store.rwdb, query, StatusRunning, startedOn, id, StatusPending)
}

// FinishBuild moves a running build to its terminal status. It reports false
// when the build was no longer running, leaving the stored row untouched.
func (store *BuildSQLStore) FinishBuild(
	ctx context.Context,
	id int64,
	status BuildStatus,
	finishedOn time.Time,
	duration int64,
) (bool, error) {
	query := `update build_records
	set status = $1,
		finished_on = $2,
		duration = $3,
		row_version = row_version + 1
	where build_record_id = $4
	and status = $5`
	return execAffected(ctx, store.rwdb, query, status, finishedOn, duration, id, StatusRunning)
}

// FailPendingBuild marks a build failed before it ever started, e.g. when it
// could not be queued.
func (store *BuildSQLStore) FailPendingBuild(
	ctx context.Context,
	id int64,
	finishedOn time.Time,
) (bool, error) {
	query := `update build_records
	set status = $1,
		finished_on = $2,
		duration = 0,
		row_version = row_version + 1
	where build_record_id = $3
	and status = $4`
	return execAffected(ctx, store.rwdb, query, StatusFailed, finishedOn, id, StatusPending)
}

// abortAttempts bounds how often AbortBuild retries when the build moved from
// pending to running between its read and its update.
const abortAttempts = 3

// AbortBuild marks a pending or running build aborted. The update is
// conditional on the status that was read, so writes that leave the status
// alone (logs, scan results, stage records) never make it fail. It reports
// false only when the build already reached a terminal status.
func (store *BuildSQLStore) AbortBuild(ctx context.Context, id int64, now time.Time) (bool, error) {
	return store.abortBuild(ctx, id, now, nil)
}

// abortBuild runs beforeUpdate, when set, inside the first attempt's
// transaction between the read and the conditional update.
func (store *BuildSQLStore) abortBuild(
	ctx context.Context,
	id int64,
	now time.Time,
	beforeUpdate func(context.Context, *sql.Tx) error,
) (bool, error) {
	for range abortAttempts {
		aborted, retry, err := store.tryAbortBuild(ctx, id, now, beforeUpdate)
		if err != nil || !retry {
			return aborted, err
		}
		beforeUpdate = nil
	}
	return false, fmt.Errorf("aborting build %d: status kept changing", id)
}

func (store *BuildSQLStore) tryAbortBuild(
	ctx context.Context,
	id int64,
	now time.Time,
	beforeUpdate func(context.Context, *sql.Tx) error,
) (aborted, retry bool, err error) {
	tx, err := store.rwdb.BeginTx(ctx, nil)
	if err != nil {
		return false, false, err
	}
	defer tx.Rollback()

	b := new(BuildRecord)
	if err := sqlscan.Get(
		ctx, tx, b,
		"select * from build_records where build_record_id = $1", id,
	); err != nil {
		return false, false, err
	}
	if b.Status.Terminal() {
		return false, false, nil
	}
	if beforeUpdate != nil {
		if err := beforeUpdate(ctx, tx); err != nil {
			return false, false, err
		}
	}

	query := `update build_records
	set status = $1,
		finished_on = coalesce(finished_on, $2),
		duration = case when started_on is null then 0 else $3 end,
		row_version = row_version + 1
	where build_record_id = $4
	and status = $5`
	ok, err := execAffected(
		ctx, tx, query,
		StatusAborted,
		now,
		DurationSeconds(b.StartedOn, now),
		id,
		b.Status,
	)
	if err != nil {
		return false, false, err
	}
	if !ok {
		return false, true, nil
	}
	return true, false, tx.Commit()
}

// UpdateBuildScan stores scan results on a running build. It reports false
// when the build is no longer running.
func (store *BuildSQLStore) UpdateBuildScan(
	ctx context.Context,
	id int64,
	taskID, qualityGate *string,
	riskScore *float64,
) (bool, error) {
	query := `update build_records
	set sonar_task_id = coalesce($1, sonar_task_id),
		sonar_quality_gate = coalesce($2, sonar_quality_gate),
		risk_score = coalesce($3, risk_score),
		row_version = row_version + 1
	where build_record_id = $4
	and status = $5`
	return execAffected(ctx, store.rwdb, query, taskID, qualityGate, riskScore, id, StatusRunning)
}

func (store *BuildSQLStore) AppendBuildLog(ctx context.Context, id int64, out string) error {
	query := "update build_records set log = log || $1 where build_record_id = $2"
	_, err := store.rwdb.ExecContext(ctx, query, out, id)
	return err
}

func (store *BuildSQLStore) ListBuilds(
	ctx context.Context,
	filter BuildFilter,
) ([]*BuildRecord, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.PipelineID != nil {
		add("b.build_pipeline_id = $%d", *filter.PipelineID)
	}
	if filter.Status != nil {
		add("b.status = $%d", *filter.Status)
	}
	if filter.From != nil {
		add("b.created_on >= $%d", filter.From.UTC())
	}
	if filter.To != nil {
		add("b.created_on <= $%d", filter.To.UTC())
	}

	query := `select
		b.build_record_id,
		b.build_id,
		b.build_pipeline_id,
		b.version,
		b.status,
		b.triggered_by,
		b.created_on,
		b.started_on,
		b.finished_on,
		b.duration,
		b.sonar_task_id,
		b.sonar_quality_gate,
		b.risk_score,
		b.row_version,
		p.name as pipeline_name
	from build_records b
	join pipelines p
	on b.build_pipeline_id = p.pipeline_id`
	if len(where) > 0 {
		query += "\n\twhere " + strings.Join(where, " and ")
	}
	query += "\n\torder by b.created_on desc, b.build_record_id desc"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" limit $%d offset $%d", len(args)-1, len(args))
	}

	builds := make([]*BuildRecord, 0)
	err := sqlscan.Select(ctx, store.rdb, &builds, query, args...)
	return builds, err
}

func (store *BuildSQLStore) ListActiveBuildIDs(
	ctx context.Context,
	pipelineID int64,
) ([]int64, error) {
	query := `select build_record_id from build_records
	where build_pipeline_id = $1
	and status in ($2, $3)
	order by build_record_id`
	ids := make([]int64, 0)
	err := sqlscan.Select(ctx, store.rwdb, &ids, query, pipelineID, StatusPending, StatusRunning)
	return ids, err
}

func (store *BuildSQLStore) ListBuildsByStatus(
	ctx context.Context,
	status BuildStatus,
) ([]*BuildRecord, error) {
	query := "select * from build_records where status = $1 order by build_record_id"
	builds := make([]*BuildRecord, 0)
	err := sqlscan.Select(ctx, store.rdb, &builds, query, status)
	return builds, err
}

func (store *BuildSQLStore) CreateStageRecord(
	ctx context.Context,
	buildRecordID, stageID int64,
	startedOn time.Time,
) (*StageRecord, error) {
	sr := &StageRecord{
		StageRecordBuildID: buildRecordID,
		StageRecordStageID: stageID,
		Status:             StatusRunning,
		StartedOn:          &startedOn,
	}
	query := `insert into stage_records (
		stage_record_build_id,
		stage_record_stage_id,
		status,
		started_on
	)
	values ($1, $2, $3, $4)
	returning stage_record_id`
	if err := sqlscan.Get(
		ctx, store.rwdb, sr, query,
		sr.StageRecordBuildID,
		sr.StageRecordStageID,
		sr.Status,
		sr.StartedOn,
	); err != nil {
		return nil, err
	}
	return sr, nil
}

func (store *BuildSQLStore) FinishStageRecord(
	ctx context.Context,
	id int64,
	status BuildStatus,
	finishedOn time.Time,
	logSnippet string,
) error {
	query := `update stage_records
	set status = $1,
		finished_on = $2,
		log_snippet = $3
	where stage_record_id = $4
	and status = $5`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		status,
		finishedOn,
		logSnippet,
		id,
		StatusRunning,
	)
	return err
}

// ListStageRecords returns the stage records of a build in stage order.
func (store *BuildSQLStore) ListStageRecords(
	ctx context.Context,
	buildRecordID int64,
) ([]StageRecord, error) {
	query := `select sr.*, s.name as stage_name, s.stage_order
	from stage_records sr
	join stages s
	on sr.stage_record_stage_id = s.stage_id
	where sr.stage_record_build_id = $1
	order by s.stage_order asc, sr.stage_record_id asc`
	records := make([]StageRecord, 0)
	err := sqlscan.Select(ctx, store.rdb, &records, query, buildRecordID)
	return records, err
}

type execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

func execAffected(ctx context.Context, db execer, query string, args ...any) (bool, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
