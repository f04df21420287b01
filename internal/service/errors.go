package service

import (
	"errors"
	"fmt"

	"github.com/qsplatform/buildcore/internal/queue"
)

var (
	ErrQueueFull       = queue.ErrQueueFull
	ErrCredentialInUse = errors.New("credential is referenced by a job")
	// ErrBuildAborted is the cancellation cause of a build aborted on request.
	ErrBuildAborted = errors.New("build aborted")
)

type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

func NewNotFoundError(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewInvalidInputError(field, message string) *InvalidInputError {
	return &InvalidInputError{Field: field, Message: message}
}

// StageExecutionError wraps the failure of a single pipeline stage.
type StageExecutionError struct {
	Stage string
	Err   error
}

func (e *StageExecutionError) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
}

func (e *StageExecutionError) Unwrap() error {
	return e.Err
}
