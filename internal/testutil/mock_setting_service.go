package testutil

import (
	"context"

	"github.com/qsplatform/buildcore/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockSettingService struct {
	mock.Mock
}

func (m *MockSettingService) ListSettings(ctx context.Context) ([]*store.SiteSetting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.SiteSetting), nil
}

func (m *MockSettingService) UpdateSetting(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}
