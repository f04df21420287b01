package handler

import (
	"time"

	"github.com/qsplatform/buildcore/internal"
	"github.com/qsplatform/buildcore/internal/store"
)

type StartBuildParams struct {
	PipelineID int64  `json:"pipeline_id"`
	Version    string `json:"version"`
}

type ListBuildsParams struct {
	PipelineID int64  `query:"pipeline_id"`
	Status     string `query:"status"`
	StartDate  string `query:"start_date"`
	EndDate    string `query:"end_date"`
	Page       int64  `query:"page"`
}

type BuildIDParams struct {
	BuildID string `param:"build_id"`
}

type PipelineIDParams struct {
	PipelineID int64 `param:"pipeline_id"`
}

type ProjectParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type PipelineParams struct {
	ProjectID   int64  `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ScheduleParams struct {
	PipelineID     int64   `param:"pipeline_id"`
	Schedule       *string `json:"schedule"`
	ScheduleBranch *string `json:"schedule_branch"`
}

type ActiveParams struct {
	PipelineID int64 `param:"pipeline_id"`
	Active     bool  `json:"active"`
}

type WebhookParams struct {
	PipelineID int64  `param:"pipeline_id"`
	Branch     string `param:"branch"`
}

type JobIDParams struct {
	JobID int64 `param:"job_id"`
}

type TriggerJobParams struct {
	JobID      int64             `param:"job_id"`
	Parameters map[string]string `json:"parameters"`
}

type ListJobBuildsParams struct {
	JobID  int64  `query:"job_id"`
	Status string `query:"status"`
	Page   int64  `query:"page"`
}

type CredentialParams struct {
	CredentialID int64  `param:"credential_id"`
	Name         string `json:"name"`
	BaseURL      string `json:"base_url"`
	Username     string `json:"username"`
	Secret       string `json:"secret"`
}

type SettingParams struct {
	Key   string `param:"key"`
	Value string `json:"value"`
}

type APIKeyParams struct {
	ID     int64  `param:"id"`
	UserID *int64 `json:"user_id"`
}

type UserParams struct {
	UserID   int64   `param:"user_id"`
	Username string  `json:"username"`
	Email    *string `json:"email"`
}

// pageBounds turns a 1-based page number into limit and offset.
func pageBounds(page int64) (int64, int64) {
	size := internal.Config.PageSize
	if page < 1 {
		page = 1
	}
	return size, (page - 1) * size
}

func parseStatus(s string) (*store.BuildStatus, bool) {
	if s == "" {
		return nil, true
	}
	st, ok := store.ParseBuildStatus(s)
	if !ok {
		return nil, false
	}
	return &st, true
}

// parseDate accepts a date or an RFC 3339 timestamp. An end date without a
// time covers the whole day.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
