package jenkins

// Status is the normalized state of a remote build.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusAborted Status = "aborted"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusAborted
}

// ParamInfo describes one parameter definition of a job.
type ParamInfo struct {
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	Type         string   `json:"type"`
	DefaultValue string   `json:"default_value"`
	Choices      []string `json:"choices"`
}

type buildInfo struct {
	Building bool    `json:"building"`
	Result   *string `json:"result"`
}

type triggerParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type triggerRequest struct {
	Parameters []triggerParameter `json:"parameters"`
}

const parametersPropertyClass = "hudson.model.ParametersDefinitionProperty"
