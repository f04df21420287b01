package store

import (
	"strings"
	"time"
)

type StageType string

const (
	StageGeneric     StageType = "generic"
	StageQualityScan StageType = "quality_scan"
	StageDeploy      StageType = "deploy"
	StageExternalJob StageType = "external_job"
)

func (st StageType) Valid() bool {
	switch st {
	case StageGeneric, StageQualityScan, StageDeploy, StageExternalJob:
		return true
	}
	return false
}

// InferStageType derives a stage type from its name for definitions that do
// not declare one.
func InferStageType(name string) StageType {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "sonar") || strings.Contains(lower, "scan") {
		return StageQualityScan
	}
	return StageGeneric
}

type Pipeline struct {
	PipelineID        int64     `json:"pipeline_id"`
	PipelineProjectID int64     `json:"project_id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Active            bool      `json:"active"`
	// Pipeline schedule in cron syntax
	Schedule *string `json:"schedule"`
	// Version label used for scheduled builds
	ScheduleBranch *string `json:"schedule_branch"`
	// Scheduler job ID
	ScheduleJobID *string   `json:"-"`
	CreatedBy     *int64    `json:"created_by"`
	CreatedOn     time.Time `json:"created_on"`

	ProjectName string  `json:"project_name,omitempty"`
	Stages      []Stage `json:"stages,omitempty"`
}

type Stage struct {
	StageID         int64     `json:"stage_id"`
	StagePipelineID int64     `json:"pipeline_id"`
	Name            string    `json:"name"`
	StageType       StageType `json:"stage_type"`
	Script          string    `json:"script"`
	TimeoutSeconds  int64     `json:"timeout_seconds"`
	StageOrder      int64     `json:"order"`
	StageJobID      *int64    `json:"job_id"`
}

func (s Stage) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// BuildTimeoutSlack covers the bookkeeping around stage execution.
const BuildTimeoutSlack = 10 * time.Minute

// BuildTimeout is the longest a build of the given stages may run: every
// stage at its timeout plus slack. Stages without a timeout count as an hour.
func BuildTimeout(stages []Stage) time.Duration {
	total := BuildTimeoutSlack
	for _, st := range stages {
		if t := st.Timeout(); t > 0 {
			total += t
		} else {
			total += time.Hour
		}
	}
	return total
}
