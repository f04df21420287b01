package store

import "time"

type Job struct {
	JobID           int64     `json:"job_id"`
	JobCredentialID int64     `json:"credential_id"`
	JobPipelineID   *int64    `json:"pipeline_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	JobURL          string    `json:"job_url"`
	Active          bool      `json:"active"`
	CreatedOn       time.Time `json:"created_on"`

	ParameterCount int64 `json:"parameter_count"`
}

type JobParameter struct {
	JobParameterID int64      `json:"id"`
	ParameterJobID int64      `json:"job_id"`
	Name           string     `json:"name"`
	DisplayName    string     `json:"display_name"`
	ParameterType  string     `json:"parameter_type"`
	DefaultValue   string     `json:"default_value"`
	Choices        StringList `json:"choices"`
	Required       bool       `json:"required"`
}

// JobBuild is one triggered run of a job on the remote CI server.
type JobBuild struct {
	JobBuildID    int64       `json:"id"`
	BuildID       string      `json:"build_id"`
	JobBuildJobID int64       `json:"job_id"`
	BuildNumber   *int64      `json:"build_number"`
	ExternalURL   string      `json:"external_url"`
	Parameters    StringMap   `json:"parameters"`
	Status        BuildStatus `json:"status"`
	Log           string      `json:"log,omitempty"`
	TriggeredBy   *int64      `json:"triggered_by"`
	CreatedOn     time.Time   `json:"created_on"`
	StartedOn     *time.Time  `json:"started_on"`
	FinishedOn    *time.Time  `json:"finished_on"`
	Duration      *int64      `json:"duration"`

	JobName string `json:"job_name,omitempty"`
}

type JobBuildFilter struct {
	JobID  *int64
	Status *BuildStatus
	Limit  int64
	Offset int64
}
