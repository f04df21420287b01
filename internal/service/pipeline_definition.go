package service

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// PipelineDefinition is the YAML form of a pipeline accepted by
// ImportPipeline. Stage order follows the list order.
type PipelineDefinition struct {
	Project        string            `yaml:"project"`
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description"`
	Schedule       *string           `yaml:"schedule"`
	ScheduleBranch *string           `yaml:"schedule_branch"`
	Stages         []StageDefinition `yaml:"stages"`
}

type StageDefinition struct {
	Name           string `yaml:"name"`
	Type           string `yaml:"type"`
	Script         string `yaml:"script"`
	TimeoutSeconds int64  `yaml:"timeout_seconds"`
	// Job is the name of the job run by an external_job stage
	Job string `yaml:"job"`
}

func ParsePipelineDefinition(data []byte) (*PipelineDefinition, error) {
	def := new(PipelineDefinition)
	if err := yaml.Unmarshal(data, def); err != nil {
		return nil, NewInvalidInputError("definition", err.Error())
	}
	if def.Project == "" || def.Name == "" {
		return nil, NewInvalidInputError("definition", "project and name are required")
	}
	for i, s := range def.Stages {
		if s.Name == "" {
			return nil, NewInvalidInputError("definition", fmt.Sprintf("stage %d has no name", i+1))
		}
	}
	return def, nil
}
