package testutil

import (
	"context"

	"github.com/qsplatform/buildcore/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockBuildService struct {
	mock.Mock
}

func (m *MockBuildService) StartBuild(
	ctx context.Context,
	pipelineID int64,
	version string,
	triggeredBy *int64,
) (*store.BuildRecord, error) {
	args := m.Called(ctx, pipelineID, version, triggeredBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.BuildRecord), nil
}

func (m *MockBuildService) CancelBuild(ctx context.Context, pipelineID int64) (int, error) {
	args := m.Called(ctx, pipelineID)
	return args.Int(0), args.Error(1)
}

func (m *MockBuildService) GetBuild(ctx context.Context, buildID string) (*store.BuildRecord, error) {
	args := m.Called(ctx, buildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.BuildRecord), nil
}

func (m *MockBuildService) ListBuilds(
	ctx context.Context,
	filter store.BuildFilter,
) ([]*store.BuildRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.BuildRecord), nil
}
