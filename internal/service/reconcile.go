package service

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/qsplatform/buildcore/internal/queue"
	"github.com/qsplatform/buildcore/internal/store"
	"go.uber.org/zap"
)

type ReconcileJobStore interface {
	ListJobBuildsByStatus(context.Context, store.BuildStatus) ([]*store.JobBuild, error)
}

// Reconciler repairs state left behind by a process that stopped while
// work was in flight.
//
// With a process-local queue every running build belongs to a process that
// is gone, so all of them fail and queued work is enqueued again. With a
// shared queue other processes may still be working, so only builds that
// outlived their build timeout fail and the queue is left alone.
type Reconciler struct {
	builds    BuildStore
	pipelines PipelineReader
	jobs      ReconcileJobStore
	queue     Enqueuer
	notifier  Notifier
	shared    bool
	now       func() time.Time
	logger    *zap.Logger
}

func NewReconciler(
	builds BuildStore,
	pipelines PipelineReader,
	jobs ReconcileJobStore,
	q Enqueuer,
	notifier Notifier,
	shared bool,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		builds:    builds,
		pipelines: pipelines,
		jobs:      jobs,
		queue:     q,
		notifier:  notifier,
		shared:    shared,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// Reconcile fails builds that were running, queues pending builds again and
// resumes tracking of running job builds.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	failed, err := r.failInterrupted(ctx)
	if err != nil {
		return err
	}
	if r.shared {
		if failed > 0 {
			r.logger.Info("reconciliation done", zap.Int("failed_builds", failed))
		}
		return nil
	}

	pending, err := r.builds.ListBuildsByStatus(ctx, store.StatusPending)
	if err != nil {
		return err
	}
	for _, b := range pending {
		if err := r.queue.Enqueue(ctx, r.executeTask(ctx, b)); err != nil {
			r.logger.Error("re-enqueue build", zap.String("build_id", b.BuildID), zap.Error(err))
		}
	}

	jobBuilds, err := r.jobs.ListJobBuildsByStatus(ctx, store.StatusRunning)
	if err != nil {
		return err
	}
	for _, jb := range jobBuilds {
		if err := r.queue.Enqueue(ctx, queue.Task{Kind: queue.KindTrackJob, RefID: jb.JobBuildID}); err != nil {
			r.logger.Error("re-enqueue job tracking", zap.String("job_build_id", jb.BuildID), zap.Error(err))
		}
	}

	r.logger.Info("reconciliation done",
		zap.Int("failed_builds", failed),
		zap.Int("requeued_builds", len(pending)),
		zap.Int("tracked_job_builds", len(jobBuilds)),
	)
	return nil
}

func (r *Reconciler) failInterrupted(ctx context.Context) (int, error) {
	running, err := r.builds.ListBuildsByStatus(ctx, store.StatusRunning)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, b := range running {
		now := r.now()
		msg := "Build interrupted by a restart\n"
		if r.shared {
			deadline, err := r.deadline(ctx, b)
			if err != nil {
				return failed, err
			}
			if now.Before(deadline) {
				continue
			}
			msg = "Build exceeded its time limit without finishing\n"
		}

		ok, err := r.builds.FinishBuild(
			ctx, b.BuildRecordID, store.StatusFailed, now, store.DurationSeconds(b.StartedOn, now),
		)
		if err != nil {
			return failed, err
		}
		if !ok {
			continue
		}
		failed++
		if err := r.builds.AppendBuildLog(ctx, b.BuildRecordID, msg); err != nil {
			r.logger.Warn("appending build log", zap.Error(err))
		}
		r.logger.Info("interrupted build failed", zap.String("build_id", b.BuildID))

		final, err := r.builds.ReadBuildByID(ctx, b.BuildRecordID)
		if err != nil {
			r.logger.Error("reading interrupted build", zap.String("build_id", b.BuildID), zap.Error(err))
			continue
		}
		r.notifier.Notify(ctx, final)
	}
	return failed, nil
}

// deadline is when a running build can no longer be held by a live worker.
func (r *Reconciler) deadline(ctx context.Context, b *store.BuildRecord) (time.Time, error) {
	stages, err := r.pipelines.ListPipelineStages(ctx, b.BuildPipelineID)
	if err != nil {
		return time.Time{}, err
	}
	started := b.CreatedOn
	if b.StartedOn != nil {
		started = *b.StartedOn
	}
	return started.Add(store.BuildTimeout(stages)), nil
}

func (r *Reconciler) executeTask(ctx context.Context, b *store.BuildRecord) queue.Task {
	t := queue.Task{Kind: queue.KindExecuteBuild, RefID: b.BuildRecordID}
	if stages, err := r.pipelines.ListPipelineStages(ctx, b.BuildPipelineID); err == nil {
		t.Timeout = store.BuildTimeout(stages)
	}
	return t
}

// Schedule runs Reconcile every interval on the scheduler.
func (r *Reconciler) Schedule(ctx context.Context, scheduler gocron.Scheduler, interval time.Duration) error {
	_, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := r.Reconcile(ctx); err != nil {
				r.logger.Error("reconciling builds", zap.Error(err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}
