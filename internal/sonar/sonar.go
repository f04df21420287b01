package sonar

import (
	"context"
	"fmt"
	"time"
)

const (
	GatePassed = "PASSED"
	GateFailed = "FAILED"
)

type Metrics struct {
	Bugs            int64   `json:"bugs"`
	Vulnerabilities int64   `json:"vulnerabilities"`
	CodeSmells      int64   `json:"code_smells"`
	Coverage        float64 `json:"coverage"`
}

type Result struct {
	TaskID      string  `json:"task_id"`
	Status      string  `json:"status"`
	QualityGate string  `json:"quality_gate"`
	Metrics     Metrics `json:"metrics"`
}

type Scanner interface {
	TriggerScan(ctx context.Context, projectKey, projectName, sourcesPath, branch string) (string, error)
	GetScanResult(ctx context.Context, taskID string) (*Result, error)
}

// StubScanner answers every scan with a fixed, passing result.
type StubScanner struct {
	now func() time.Time
}

func NewStubScanner() *StubScanner {
	return &StubScanner{now: time.Now}
}

func (s *StubScanner) TriggerScan(
	ctx context.Context,
	projectKey, projectName, sourcesPath, branch string,
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("task_%d", s.now().Unix()), nil
}

func (s *StubScanner) GetScanResult(ctx context.Context, taskID string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Result{
		TaskID:      taskID,
		Status:      "SUCCESS",
		QualityGate: GatePassed,
		Metrics: Metrics{
			Bugs:            5,
			Vulnerabilities: 2,
			CodeSmells:      10,
			Coverage:        85.5,
		},
	}, nil
}

// RiskScore weighs scan findings into a score between 0 and 100, higher
// meaning riskier.
func RiskScore(m Metrics) float64 {
	score := float64(m.Bugs)*2 +
		float64(m.Vulnerabilities)*5 +
		float64(m.CodeSmells)*0.2 +
		(100-min(max(m.Coverage, 0), 100))*0.3
	return min(max(score, 0), 100)
}
