package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/qsplatform/buildcore/internal/sonar"
	"github.com/qsplatform/buildcore/internal/store"
	"go.uber.org/zap"
)

const logSnippetLength = 2000

// StageRun is the input of a stage handler.
type StageRun struct {
	Build    *store.BuildRecord
	Pipeline *store.Pipeline
	Stage    store.Stage
}

// StageHandler executes one stage and returns the output to record.
type StageHandler func(ctx context.Context, run *StageRun) (string, error)

type Notifier interface {
	Notify(ctx context.Context, b *store.BuildRecord)
}

type JobStarter interface {
	StartJobBuild(context.Context, int64, map[string]string, *int64) (*store.JobBuild, error)
}

type JobTracker interface {
	Track(ctx context.Context, jobBuildID int64) error
}

type JobBuildReader interface {
	ReadJobBuildByID(context.Context, int64) (*store.JobBuild, error)
}

type Orchestrator struct {
	builds    BuildStore
	pipelines PipelineReader
	jobs      JobStarter
	jobBuilds JobBuildReader
	tracker   JobTracker
	scanner   sonar.Scanner
	notifier  Notifier
	logger    *zap.Logger

	handlers map[store.StageType]StageHandler
	cancels  *CancelMap[int64]
}

func NewOrchestrator(
	builds BuildStore,
	pipelines PipelineReader,
	jobs JobStarter,
	jobBuilds JobBuildReader,
	tracker JobTracker,
	scanner sonar.Scanner,
	notifier Notifier,
	logger *zap.Logger,
) *Orchestrator {
	o := &Orchestrator{
		builds:    builds,
		pipelines: pipelines,
		jobs:      jobs,
		jobBuilds: jobBuilds,
		tracker:   tracker,
		scanner:   scanner,
		notifier:  notifier,
		logger:    logger,
		cancels:   NewCancelMap[int64](),
	}
	o.handlers = map[store.StageType]StageHandler{
		store.StageGeneric:     o.runScript,
		store.StageDeploy:      o.runScript,
		store.StageQualityScan: o.runQualityScan,
		store.StageExternalJob: o.runExternalJob,
	}
	return o
}

// Cancel fires the cancellation token of a build running in this process.
func (o *Orchestrator) Cancel(ctx context.Context, buildRecordID int64) error {
	if o.cancels.Call(buildRecordID, ErrBuildAborted) {
		o.logger.Info("build cancellation fired", zap.Int64("build_record_id", buildRecordID))
	}
	return nil
}

// Execute runs a pending build to completion. Builds that are no longer
// pending are skipped.
func (o *Orchestrator) Execute(ctx context.Context, buildRecordID int64) error {
	b, err := o.builds.ReadBuildByID(ctx, buildRecordID)
	if errors.Is(err, sql.ErrNoRows) {
		o.logger.Warn("build to execute not found", zap.Int64("build_record_id", buildRecordID))
		return nil
	}
	if err != nil {
		return err
	}
	if b.Status != store.StatusPending {
		o.logger.Info("skipping build",
			zap.String("build_id", b.BuildID),
			zap.String("status", string(b.Status)),
		)
		return nil
	}

	ctx, cancel := context.WithCancelCause(ctx)
	o.cancels.AddCancel(b.BuildRecordID, cancel)
	defer func() {
		o.cancels.RemoveCancel(b.BuildRecordID)
		cancel(nil)
	}()
	// status writes must land even when the build context is cancelled
	dbctx := context.WithoutCancel(ctx)

	startedOn := time.Now().UTC()
	ok, err := o.builds.MarkBuildRunning(ctx, b.BuildRecordID, startedOn)
	if err != nil || !ok {
		return err
	}
	b.Status = store.StatusRunning
	b.StartedOn = &startedOn

	log := o.logger.With(zap.String("build_id", b.BuildID), zap.String("pipeline", b.PipelineName))
	log.Info("build started", zap.String("version", b.Version))
	o.appendLog(dbctx, b.BuildRecordID, fmt.Sprintf(
		"Build %s of %s started, version %s\n", b.BuildID, b.PipelineName, b.Version,
	))

	runErr := o.runStages(ctx, dbctx, b)
	if o.aborted(ctx, runErr) {
		log.Info("build aborted")
		o.appendLog(dbctx, b.BuildRecordID, "Build aborted\n")
		return nil
	}

	status := store.StatusSuccess
	if runErr != nil {
		status = store.StatusFailed
		log.Warn("build failed", zap.Error(runErr))
		o.appendLog(dbctx, b.BuildRecordID, fmt.Sprintf("Build failed: %v\n", runErr))
	} else {
		o.appendLog(dbctx, b.BuildRecordID, "Build succeeded\n")
	}

	if errors.Is(context.Cause(ctx), ErrBuildAborted) {
		return nil
	}
	finishedOn := time.Now().UTC()
	ok, err = o.builds.FinishBuild(
		dbctx, b.BuildRecordID, status, finishedOn, store.DurationSeconds(b.StartedOn, finishedOn),
	)
	if err != nil {
		return err
	}
	if !ok {
		log.Info("build changed concurrently, final status not written")
		return nil
	}
	log.Info("build finished", zap.String("status", string(status)))

	final, err := o.builds.ReadBuildByID(dbctx, b.BuildRecordID)
	if err != nil {
		return err
	}
	o.notifier.Notify(dbctx, final)
	return nil
}

func (o *Orchestrator) aborted(ctx context.Context, runErr error) bool {
	return errors.Is(runErr, ErrBuildAborted) || errors.Is(context.Cause(ctx), ErrBuildAborted)
}

func (o *Orchestrator) runStages(ctx, dbctx context.Context, b *store.BuildRecord) error {
	p, err := o.pipelines.ReadPipelineByID(dbctx, b.BuildPipelineID)
	if err != nil {
		return err
	}
	stages, err := o.pipelines.ListPipelineStages(dbctx, p.PipelineID)
	if err != nil {
		return err
	}

	for _, stage := range stages {
		if err := o.checkAborted(ctx, dbctx, b.BuildRecordID); err != nil {
			return err
		}
		if err := o.runStage(ctx, dbctx, &StageRun{Build: b, Pipeline: p, Stage: stage}); err != nil {
			return err
		}
	}
	return o.checkAborted(ctx, dbctx, b.BuildRecordID)
}

// checkAborted consults the cancellation token and the stored status, which
// covers aborts issued by another process.
func (o *Orchestrator) checkAborted(ctx, dbctx context.Context, buildRecordID int64) error {
	if errors.Is(context.Cause(ctx), ErrBuildAborted) {
		return ErrBuildAborted
	}
	status, err := o.builds.ReadBuildStatus(dbctx, buildRecordID)
	if err != nil {
		return err
	}
	if status == store.StatusAborted {
		return ErrBuildAborted
	}
	return nil
}

func (o *Orchestrator) runStage(ctx, dbctx context.Context, run *StageRun) error {
	stage := run.Stage
	sr, err := o.builds.CreateStageRecord(dbctx, run.Build.BuildRecordID, stage.StageID, time.Now().UTC())
	if err != nil {
		return err
	}
	o.appendLog(dbctx, run.Build.BuildRecordID, fmt.Sprintf(
		"[%d] %s (%s)\n", stage.StageOrder, stage.Name, stage.StageType,
	))

	out, err := o.dispatch(ctx, run)
	status := store.StatusSuccess
	snippet := out
	if err != nil {
		status = store.StatusFailed
		switch {
		case errors.Is(err, ErrBuildAborted):
			status = store.StatusAborted
		case errors.Is(context.Cause(ctx), ErrBuildAborted):
			status = store.StatusAborted
			err = errors.Join(ErrBuildAborted, err)
		}
		snippet = out + err.Error()
	}
	if len(snippet) > logSnippetLength {
		snippet = snippet[len(snippet)-logSnippetLength:]
	}
	if out != "" {
		o.appendLog(dbctx, run.Build.BuildRecordID, out)
	}
	if ferr := o.builds.FinishStageRecord(dbctx, sr.StageRecordID, status, time.Now().UTC(), snippet); ferr != nil {
		return errors.Join(err, ferr)
	}
	if err != nil {
		o.appendLog(dbctx, run.Build.BuildRecordID, fmt.Sprintf("[%d] %s %s: %v\n", stage.StageOrder, stage.Name, status, err))
		return &StageExecutionError{Stage: stage.Name, Err: err}
	}
	return nil
}

type stageResult struct {
	out string
	err error
}

// dispatch runs the handler registered for the stage type and gives up once
// the stage timeout elapses or the build is cancelled.
func (o *Orchestrator) dispatch(ctx context.Context, run *StageRun) (string, error) {
	handler, ok := o.handlers[run.Stage.StageType]
	if !ok {
		return "", fmt.Errorf("unsupported stage type %q", run.Stage.StageType)
	}

	if timeout := run.Stage.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan stageResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stageResult{err: fmt.Errorf("stage panicked: %v", r)}
			}
		}()
		out, err := handler(ctx, run)
		done <- stageResult{out: out, err: err}
	}()

	var res stageResult
	select {
	case res = <-done:
		if res.err == nil {
			return res.out, nil
		}
	case <-ctx.Done():
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return res.out, fmt.Errorf("timed out after %d seconds", run.Stage.TimeoutSeconds)
	case ctx.Err() != nil:
		return res.out, context.Cause(ctx)
	}
	return res.out, res.err
}

func (o *Orchestrator) appendLog(ctx context.Context, buildRecordID int64, out string) {
	if err := o.builds.AppendBuildLog(ctx, buildRecordID, out); err != nil {
		o.logger.Warn("appending build log", zap.Int64("build_record_id", buildRecordID), zap.Error(err))
	}
}

// Publisher broadcasts a build cancellation to other processes.
type Publisher interface {
	Publish(ctx context.Context, buildRecordID int64) error
}

// BroadcastCanceller fires cancellations in every process through a
// Publisher. Each process forwards received ids to its Orchestrator.
type BroadcastCanceller struct {
	publisher Publisher
}

func NewBroadcastCanceller(p Publisher) *BroadcastCanceller {
	return &BroadcastCanceller{publisher: p}
}

func (c *BroadcastCanceller) Cancel(ctx context.Context, buildRecordID int64) error {
	return c.publisher.Publish(ctx, buildRecordID)
}
