package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/qsplatform/buildcore/internal/sonar"
	"github.com/qsplatform/buildcore/internal/store"
	"go.uber.org/zap"
)

// runScript handles generic and deploy stages. The script is recorded but
// not executed.
func (o *Orchestrator) runScript(ctx context.Context, run *StageRun) (string, error) {
	o.logger.Debug("running stage script",
		zap.String("build_id", run.Build.BuildID),
		zap.String("stage", run.Stage.Name),
		zap.String("script", run.Stage.Script),
	)
	var sb strings.Builder
	for line := range strings.SplitSeq(strings.TrimSpace(run.Stage.Script), "\n") {
		if line == "" {
			continue
		}
		fmt.Fprintf(&sb, "$ %s\n", line)
	}
	return sb.String(), nil
}

func (o *Orchestrator) runQualityScan(ctx context.Context, run *StageRun) (string, error) {
	projectKey := fmt.Sprintf("%s_%s", run.Pipeline.ProjectName, run.Pipeline.Name)
	projectName := fmt.Sprintf("%s - %s", run.Pipeline.ProjectName, run.Pipeline.Name)

	taskID, err := o.scanner.TriggerScan(ctx, projectKey, projectName, ".", run.Build.Version)
	if err != nil {
		return "", fmt.Errorf("triggering scan: %w", err)
	}
	result, err := o.scanner.GetScanResult(ctx, taskID)
	if err != nil {
		return fmt.Sprintf("Scan %s triggered\n", taskID), fmt.Errorf("reading scan result: %w", err)
	}

	// an aborted or timed out build must not receive scan results
	if ctx.Err() != nil {
		return fmt.Sprintf("Scan %s triggered\n", taskID), context.Cause(ctx)
	}
	risk := sonar.RiskScore(result.Metrics)
	ok, err := o.builds.UpdateBuildScan(
		context.WithoutCancel(ctx),
		run.Build.BuildRecordID,
		&taskID,
		&result.QualityGate,
		&risk,
	)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("Scan %s triggered\n", taskID), ErrBuildAborted
	}
	run.Build.SonarTaskID = &taskID
	run.Build.SonarQualityGate = &result.QualityGate
	run.Build.RiskScore = &risk

	return fmt.Sprintf(
		"Scan %s: quality gate %s, bugs %d, vulnerabilities %d, code smells %d, coverage %.1f%%, risk %.2f\n",
		taskID,
		result.QualityGate,
		result.Metrics.Bugs,
		result.Metrics.Vulnerabilities,
		result.Metrics.CodeSmells,
		result.Metrics.Coverage,
		risk,
	), nil
}

// runExternalJob triggers the job linked to the stage and tracks it until
// it is terminal. The stage succeeds only when the job succeeds.
func (o *Orchestrator) runExternalJob(ctx context.Context, run *StageRun) (string, error) {
	if run.Stage.StageJobID == nil {
		return "", errors.New("stage has no linked job")
	}

	jb, err := o.jobs.StartJobBuild(ctx, *run.Stage.StageJobID, nil, run.Build.TriggeredBy)
	if err != nil {
		return "", fmt.Errorf("triggering job: %w", err)
	}
	out := fmt.Sprintf("Triggered %s\n", jb.ExternalURL)

	if err := o.tracker.Track(ctx, jb.JobBuildID); err != nil {
		return out, err
	}
	final, err := o.jobBuilds.ReadJobBuildByID(context.WithoutCancel(ctx), jb.JobBuildID)
	if err != nil {
		return out, err
	}
	out += fmt.Sprintf("Job build %s finished %s\n", final.BuildID, final.Status)
	if final.Status != store.StatusSuccess {
		return out, fmt.Errorf("job build %s finished %s", final.BuildID, final.Status)
	}
	return out, nil
}
