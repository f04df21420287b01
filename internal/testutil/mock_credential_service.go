package testutil

import (
	"context"

	"github.com/qsplatform/buildcore/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockCredentialService struct {
	mock.Mock
}

func (m *MockCredentialService) CreateCredential(
	ctx context.Context,
	name, baseURL, username, secret string,
) (*store.JobCredential, error) {
	args := m.Called(ctx, name, baseURL, username, secret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.JobCredential), nil
}

func (m *MockCredentialService) ListCredentials(
	ctx context.Context,
	activeOnly bool,
) ([]*store.JobCredential, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.JobCredential), nil
}

func (m *MockCredentialService) DeleteCredential(ctx context.Context, credentialID int64) error {
	args := m.Called(ctx, credentialID)
	return args.Error(0)
}
