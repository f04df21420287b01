package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/qsplatform/buildcore/internal/store"
)

type SettingReader interface {
	ReadSetting(context.Context, string) (string, error)
}

type SettingStore interface {
	SettingReader
	UpsertSetting(context.Context, string, string) error
	ListSettings(context.Context) ([]*store.SiteSetting, error)
}

var knownSettings = map[string]bool{
	SettingSMTPServer:   true,
	SettingSMTPPort:     true,
	SettingSMTPUsername: true,
	SettingSMTPPassword: true,
	SettingSenderEmail:  true,
}

type SettingService struct {
	settingStore SettingStore
}

func NewSettingService(s SettingStore) *SettingService {
	return &SettingService{settingStore: s}
}

// ListSettings returns the site settings with the smtp password masked.
func (s *SettingService) ListSettings(ctx context.Context) ([]*store.SiteSetting, error) {
	settings, err := s.settingStore.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range settings {
		if st.Key == SettingSMTPPassword && st.Value != "" {
			st.Value = "********"
		}
	}
	return settings, nil
}

func (s *SettingService) GetSetting(ctx context.Context, key string) (string, error) {
	v, err := s.settingStore.ReadSetting(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", NewNotFoundError("setting", key)
	}
	return v, err
}

func (s *SettingService) UpdateSetting(ctx context.Context, key, value string) error {
	if !knownSettings[key] {
		return NewInvalidInputError("key", "unknown setting")
	}
	if key == SettingSMTPPort {
		if port, err := strconv.Atoi(value); err != nil || port <= 0 || port > 65535 {
			return NewInvalidInputError("value", "invalid port")
		}
	}
	return s.settingStore.UpsertSetting(ctx, key, value)
}
