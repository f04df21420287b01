package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qsplatform/buildcore/internal"
	"github.com/qsplatform/buildcore/internal/jenkins"
	"github.com/qsplatform/buildcore/internal/store"
	"go.uber.org/zap"
)

// CIClient is the subset of the CI server API used for jobs.
type CIClient interface {
	GetJobParameters(ctx context.Context, jobURL string) ([]jenkins.ParamInfo, error)
	TriggerBuild(ctx context.Context, jobURL string, params map[string]string) (int64, error)
	GetBuildStatus(ctx context.Context, jobURL string, n int64) (jenkins.Status, error)
	GetBuildLog(ctx context.Context, jobURL string, n, start, length int64) (string, error)
}

type ClientFactory interface {
	ClientFor(ctx context.Context, credentialID int64) (CIClient, error)
}

type TrackerJobStore interface {
	ReadJobByID(context.Context, int64) (*store.Job, error)
	ReadJobBuildByID(context.Context, int64) (*store.JobBuild, error)
	UpdateJobBuildProgress(context.Context, int64, store.BuildStatus, string) error
	FinishJobBuild(context.Context, int64, store.BuildStatus, *string, time.Time, int64) (bool, error)
}

// Tracker polls the CI server for the progress of a job build until it
// reaches a terminal status.
type Tracker struct {
	jobs     TrackerJobStore
	clients  ClientFactory
	interval time.Duration
	logger   *zap.Logger
}

func NewTracker(jobs TrackerJobStore, clients ClientFactory, logger *zap.Logger) *Tracker {
	return &Tracker{
		jobs:     jobs,
		clients:  clients,
		interval: internal.Config.PollIntervalSeconds.Duration(),
		logger:   logger,
	}
}

// Track returns once the job build is terminal or ctx is done. A build
// aborted through ctx is stored aborted, a deadline marks it failed and a
// plain cancellation leaves it running so it can be resumed.
func (t *Tracker) Track(ctx context.Context, jobBuildID int64) (err error) {
	dbctx := context.WithoutCancel(ctx)
	jb, err := t.jobs.ReadJobBuildByID(dbctx, jobBuildID)
	if err != nil {
		return err
	}
	if jb.Status.Terminal() {
		return nil
	}
	log := t.logger.With(zap.String("job_build_id", jb.BuildID))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tracking panicked: %v", r)
		}
		if err != nil && ctx.Err() == nil {
			log.Error("tracking job build failed", zap.Error(err))
			t.finish(dbctx, jb, store.StatusFailed, nil)
		}
	}()

	if jb.BuildNumber == nil {
		return errors.New("job build has no build number")
	}
	job, err := t.jobs.ReadJobByID(dbctx, jb.JobBuildJobID)
	if err != nil {
		return err
	}
	client, err := t.clients.ClientFor(dbctx, job.JobCredentialID)
	if err != nil {
		return err
	}

	status := jb.Status
	logText := jb.Log
	ticker := time.NewTicker(max(t.interval, time.Millisecond))
	defer ticker.Stop()

	for {
		s, err := client.GetBuildStatus(ctx, job.JobURL, *jb.BuildNumber)
		switch {
		case err == nil:
			status = store.BuildStatus(s)
		case !isTransient(err):
			return err
		default:
			log.Debug("keeping last known status", zap.Error(err))
		}

		out, err := client.GetBuildLog(ctx, job.JobURL, *jb.BuildNumber, 0, int64(internal.Config.LogLength))
		switch {
		case err == nil:
			logText = out
		case !isTransient(err):
			return err
		default:
			log.Debug("keeping last known log", zap.Error(err))
		}

		if status.Terminal() {
			t.finish(dbctx, jb, status, &logText)
			log.Info("job build finished", zap.String("status", string(status)))
			return nil
		}
		if err := t.jobs.UpdateJobBuildProgress(dbctx, jb.JobBuildID, status, logText); err != nil {
			log.Warn("storing job build progress", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return t.interrupted(ctx, dbctx, jb, &logText)
		case <-ticker.C:
		}
	}
}

func (t *Tracker) interrupted(
	ctx, dbctx context.Context,
	jb *store.JobBuild,
	logText *string,
) error {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, ErrBuildAborted):
		t.finish(dbctx, jb, store.StatusAborted, logText)
		return cause
	case errors.Is(cause, context.DeadlineExceeded):
		t.finish(dbctx, jb, store.StatusFailed, logText)
		return cause
	}
	// left running, resumed by reconciliation on the next start
	return context.Canceled
}

func (t *Tracker) finish(
	ctx context.Context,
	jb *store.JobBuild,
	status store.BuildStatus,
	logText *string,
) {
	finishedOn := time.Now().UTC()
	if _, err := t.jobs.FinishJobBuild(
		ctx, jb.JobBuildID, status, logText, finishedOn,
		store.DurationSeconds(jb.StartedOn, finishedOn),
	); err != nil {
		t.logger.Error("finishing job build", zap.String("job_build_id", jb.BuildID), zap.Error(err))
	}
}

func isTransient(err error) bool {
	var svcErr *jenkins.ServiceError
	return errors.Is(err, jenkins.ErrNoData) || errors.As(err, &svcErr)
}

// CredentialClientFactory builds CI clients from stored job credentials.
type CredentialClientFactory struct {
	credentials CredentialReader
	decrypter   Decrypter
	logger      *zap.Logger
}

type Decrypter interface {
	DecryptAES(string) ([]byte, error)
}

func NewCredentialClientFactory(
	credentials CredentialReader,
	decrypter Decrypter,
	logger *zap.Logger,
) *CredentialClientFactory {
	return &CredentialClientFactory{credentials: credentials, decrypter: decrypter, logger: logger}
}

func (f *CredentialClientFactory) ClientFor(ctx context.Context, credentialID int64) (CIClient, error) {
	c, err := f.credentials.ReadCredentialByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return nil, NewNotFoundError("credential", credentialID)
	}
	secret, err := f.decrypter.DecryptAES(c.SecretHash)
	if err != nil {
		return nil, fmt.Errorf("decrypting credential secret: %w", err)
	}
	return jenkins.NewClient(c.BaseURL, c.Username, string(secret), jenkins.WithLogger(f.logger)), nil
}
