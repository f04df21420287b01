package testutil

import (
	"context"

	"github.com/qsplatform/buildcore/internal/service"
	"github.com/qsplatform/buildcore/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockPipelineService struct {
	mock.Mock
}

func (m *MockPipelineService) CreateProject(
	ctx context.Context,
	name, description string,
) (*store.Project, error) {
	args := m.Called(ctx, name, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Project), nil
}

func (m *MockPipelineService) ListProjects(ctx context.Context) ([]*store.Project, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Project), nil
}

func (m *MockPipelineService) CreatePipeline(
	ctx context.Context,
	projectID int64,
	name, description string,
	createdBy *int64,
) (*store.Pipeline, error) {
	args := m.Called(ctx, projectID, name, description, createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Pipeline), nil
}

func (m *MockPipelineService) ImportPipeline(
	ctx context.Context,
	data []byte,
	createdBy *int64,
) (*store.Pipeline, error) {
	args := m.Called(ctx, data, createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Pipeline), nil
}

func (m *MockPipelineService) AddStage(
	ctx context.Context,
	pipelineID int64,
	in service.StageInput,
) (*store.Stage, error) {
	args := m.Called(ctx, pipelineID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Stage), nil
}

func (m *MockPipelineService) UpdatePipelineSchedule(
	ctx context.Context,
	pipelineID int64,
	schedule, branch *string,
) error {
	args := m.Called(ctx, pipelineID, schedule, branch)
	return args.Error(0)
}

func (m *MockPipelineService) SetPipelineActive(ctx context.Context, pipelineID int64, active bool) error {
	args := m.Called(ctx, pipelineID, active)
	return args.Error(0)
}

func (m *MockPipelineService) DeletePipeline(ctx context.Context, pipelineID int64) error {
	args := m.Called(ctx, pipelineID)
	return args.Error(0)
}

func (m *MockPipelineService) GetPipeline(ctx context.Context, pipelineID int64) (*store.Pipeline, error) {
	args := m.Called(ctx, pipelineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Pipeline), nil
}

func (m *MockPipelineService) ListPipelines(ctx context.Context) ([]*store.Pipeline, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Pipeline), nil
}
