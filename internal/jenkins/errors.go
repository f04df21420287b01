package jenkins

import (
	"errors"
	"fmt"
)

// ErrNoData is returned when the server answered but has nothing to report
// yet, e.g. a build that has not been scheduled.
var ErrNoData = errors.New("jenkins: no data")

// ServiceError reports a transport failure or an unexpected HTTP status
// from the CI server.
type ServiceError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("jenkins %s: unexpected status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("jenkins %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
