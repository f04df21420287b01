package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/qsplatform/buildcore/internal"
	"github.com/qsplatform/buildcore/internal/queue"
	"github.com/qsplatform/buildcore/internal/store"
	"go.uber.org/zap"
)

type BuildWriter interface {
	CreateBuild(context.Context, int64, string, string, *int64) (*store.BuildRecord, error)
	MarkBuildRunning(context.Context, int64, time.Time) (bool, error)
	FinishBuild(context.Context, int64, store.BuildStatus, time.Time, int64) (bool, error)
	FailPendingBuild(context.Context, int64, time.Time) (bool, error)
	AbortBuild(context.Context, int64, time.Time) (bool, error)
	UpdateBuildScan(context.Context, int64, *string, *string, *float64) (bool, error)
	AppendBuildLog(context.Context, int64, string) error
	CreateStageRecord(context.Context, int64, int64, time.Time) (*store.StageRecord, error)
	FinishStageRecord(context.Context, int64, store.BuildStatus, time.Time, string) error
}

type BuildReader interface {
	ReadBuildByID(context.Context, int64) (*store.BuildRecord, error)
	ReadBuildByBuildID(context.Context, string) (*store.BuildRecord, error)
	ReadBuildStatus(context.Context, int64) (store.BuildStatus, error)
	ListBuilds(context.Context, store.BuildFilter) ([]*store.BuildRecord, error)
	ListActiveBuildIDs(context.Context, int64) ([]int64, error)
	ListBuildsByStatus(context.Context, store.BuildStatus) ([]*store.BuildRecord, error)
	ListStageRecords(context.Context, int64) ([]store.StageRecord, error)
}

type BuildStore interface {
	BuildWriter
	BuildReader
}

type Enqueuer interface {
	Enqueue(context.Context, queue.Task) error
}

// Canceller fires the cancellation token of a running build.
type Canceller interface {
	Cancel(ctx context.Context, buildRecordID int64) error
}

type BuildService struct {
	builds    BuildStore
	pipelines PipelineReader
	queue     Enqueuer
	canceller Canceller
	notifier  Notifier
	uuidGen   UUIDGenerator
	logger    *zap.Logger
}

func NewBuildService(
	builds BuildStore,
	pipelines PipelineReader,
	q Enqueuer,
	canceller Canceller,
	notifier Notifier,
	uuidGen UUIDGenerator,
	logger *zap.Logger,
) *BuildService {
	return &BuildService{
		builds:    builds,
		pipelines: pipelines,
		queue:     q,
		canceller: canceller,
		notifier:  notifier,
		uuidGen:   uuidGen,
		logger:    logger,
	}
}

// StartBuild records a pending build of the pipeline and queues it for
// execution. It does not wait for the build to run.
func (s *BuildService) StartBuild(
	ctx context.Context,
	pipelineID int64,
	version string,
	triggeredBy *int64,
) (*store.BuildRecord, error) {
	p, err := s.pipelines.ReadPipelineByID(ctx, pipelineID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("pipeline", pipelineID)
	}
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, NewNotFoundError("pipeline", pipelineID)
	}
	if version == "" {
		version = internal.DefaultVersion
	}
	stages, err := s.pipelines.ListPipelineStages(ctx, p.PipelineID)
	if err != nil {
		return nil, err
	}

	b, err := s.builds.CreateBuild(ctx, p.PipelineID, s.uuidGen.GenerateUUID(), version, triggeredBy)
	if err != nil {
		return nil, err
	}
	b.PipelineName = p.Name

	task := queue.Task{
		Kind:    queue.KindExecuteBuild,
		RefID:   b.BuildRecordID,
		Timeout: store.BuildTimeout(stages),
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Error("enqueue build failed",
			zap.String("build_id", b.BuildID),
			zap.Error(err),
		)
		s.failUnqueued(context.WithoutCancel(ctx), b)
		return nil, err
	}

	s.logger.Info("build queued",
		zap.String("build_id", b.BuildID),
		zap.String("pipeline", p.Name),
		zap.String("version", version),
	)
	return b, nil
}

// failUnqueued fails a build that never reached the queue and notifies its
// recipients like any other failed build.
func (s *BuildService) failUnqueued(ctx context.Context, b *store.BuildRecord) {
	ok, err := s.builds.FailPendingBuild(ctx, b.BuildRecordID, time.Now().UTC())
	if err != nil {
		s.logger.Error("marking unqueued build failed", zap.String("build_id", b.BuildID), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	if err := s.builds.AppendBuildLog(ctx, b.BuildRecordID, "Build could not be queued\n"); err != nil {
		s.logger.Warn("appending build log", zap.Error(err))
	}
	final, err := s.builds.ReadBuildByID(ctx, b.BuildRecordID)
	if err != nil {
		s.logger.Error("reading unqueued build", zap.String("build_id", b.BuildID), zap.Error(err))
		return
	}
	s.notifier.Notify(ctx, final)
}

// CancelBuild aborts every pending or running build of the pipeline and
// returns how many were aborted.
func (s *BuildService) CancelBuild(ctx context.Context, pipelineID int64) (int, error) {
	if _, err := s.pipelines.ReadPipelineByID(ctx, pipelineID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, NewNotFoundError("pipeline", pipelineID)
		}
		return 0, err
	}

	ids, err := s.builds.ListActiveBuildIDs(ctx, pipelineID)
	if err != nil {
		return 0, err
	}

	aborted := 0
	for _, id := range ids {
		ok, err := s.builds.AbortBuild(ctx, id, time.Now().UTC())
		if err != nil {
			return aborted, err
		}
		if !ok {
			continue
		}
		aborted++
		if err := s.canceller.Cancel(ctx, id); err != nil {
			s.logger.Warn("firing build cancellation", zap.Int64("build_record_id", id), zap.Error(err))
		}
	}
	s.logger.Info("builds aborted", zap.Int64("pipeline_id", pipelineID), zap.Int("count", aborted))
	return aborted, nil
}

// GetBuild returns the build with its stage records in stage order.
func (s *BuildService) GetBuild(ctx context.Context, buildID string) (*store.BuildRecord, error) {
	b, err := s.builds.ReadBuildByBuildID(ctx, buildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("build", buildID)
	}
	if err != nil {
		return nil, err
	}
	records, err := s.builds.ListStageRecords(ctx, b.BuildRecordID)
	if err != nil {
		return nil, err
	}
	b.StageRecords = records
	return b, nil
}

func (s *BuildService) ListBuilds(
	ctx context.Context,
	filter store.BuildFilter,
) ([]*store.BuildRecord, error) {
	return s.builds.ListBuilds(ctx, filter)
}
