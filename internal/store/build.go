package store

import (
	"time"
)

type BuildStatus string

const (
	StatusPending BuildStatus = "pending"
	StatusRunning BuildStatus = "running"
	StatusSuccess BuildStatus = "success"
	StatusFailed  BuildStatus = "failed"
	StatusAborted BuildStatus = "aborted"
)

func (s BuildStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusAborted
}

func (s BuildStatus) Valid() bool {
	return s == StatusPending || s == StatusRunning || s.Terminal()
}

// ParseBuildStatus returns the status named by s, or false when s is not a
// known status.
func ParseBuildStatus(s string) (BuildStatus, bool) {
	status := BuildStatus(s)
	return status, status.Valid()
}

type BuildRecord struct {
	BuildRecordID    int64       `json:"id"`
	BuildID          string      `json:"build_id"`
	BuildPipelineID  int64       `json:"pipeline_id"`
	Version          string      `json:"version"`
	Status           BuildStatus `json:"status"`
	TriggeredBy      *int64      `json:"triggered_by"`
	CreatedOn        time.Time   `json:"created_on"`
	StartedOn        *time.Time  `json:"started_on"`
	FinishedOn       *time.Time  `json:"finished_on"`
	Duration         *int64      `json:"duration"`
	SonarTaskID      *string     `json:"sonar_task_id"`
	SonarQualityGate *string     `json:"sonar_quality_gate"`
	RiskScore        *float64    `json:"risk_score"`
	Log              string      `json:"log,omitempty"`
	RowVersion       int64       `json:"-"`

	PipelineName string        `json:"pipeline_name,omitempty"`
	StageRecords []StageRecord `json:"stages,omitempty"`
}

type StageRecord struct {
	StageRecordID      int64       `json:"id"`
	StageRecordBuildID int64       `json:"build_record_id"`
	StageRecordStageID int64       `json:"stage_id"`
	Status             BuildStatus `json:"status"`
	StartedOn          *time.Time  `json:"started_on"`
	FinishedOn         *time.Time  `json:"finished_on"`
	LogSnippet         string      `json:"log_snippet"`

	StageName  string `json:"stage_name,omitempty"`
	StageOrder int64  `json:"stage_order,omitempty"`
}

// BuildFilter narrows build history queries. Zero values do not filter.
type BuildFilter struct {
	PipelineID *int64
	Status     *BuildStatus
	From       *time.Time
	To         *time.Time
	Limit      int64
	Offset     int64
}

// DurationSeconds returns the whole seconds between started and finished,
// 0 when started is unset or after finished.
func DurationSeconds(started *time.Time, finished time.Time) int64 {
	if started == nil {
		return 0
	}
	return max(0, int64(finished.Sub(*started)/time.Second))
}
