package testutil

import (
	"context"

	"github.com/qsplatform/buildcore/internal/service"
	"github.com/qsplatform/buildcore/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) CreateJob(ctx context.Context, in service.JobInput) (*store.Job, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Job), nil
}

func (m *MockJobService) ListJobs(ctx context.Context, activeOnly bool) ([]*store.Job, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Job), nil
}

func (m *MockJobService) DeleteJob(ctx context.Context, jobID int64) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockJobService) ListJobParameters(ctx context.Context, jobID int64) ([]store.JobParameter, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.JobParameter), nil
}

func (m *MockJobService) ParseJobParameters(ctx context.Context, jobID int64) ([]store.JobParameter, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.JobParameter), nil
}

func (m *MockJobService) TriggerJob(
	ctx context.Context,
	jobID int64,
	params map[string]string,
	triggeredBy *int64,
) (*store.JobBuild, error) {
	args := m.Called(ctx, jobID, params, triggeredBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.JobBuild), nil
}

func (m *MockJobService) GetJobBuild(ctx context.Context, buildID string) (*store.JobBuild, error) {
	args := m.Called(ctx, buildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.JobBuild), nil
}

func (m *MockJobService) ListJobBuilds(
	ctx context.Context,
	filter store.JobBuildFilter,
) ([]*store.JobBuild, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.JobBuild), nil
}
