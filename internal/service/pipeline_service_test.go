package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/qsplatform/buildcore/internal/store"
	"github.com/qsplatform/buildcore/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	gocronWait = 2 * time.Second
	gocronTick = 10 * time.Millisecond
)

type recordingStarter struct {
	mu       sync.Mutex
	versions []string
}

func (s *recordingStarter) StartBuild(
	ctx context.Context,
	pipelineID int64,
	version string,
	triggeredBy *int64,
) (*store.BuildRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = append(s.versions, version)
	return &store.BuildRecord{BuildPipelineID: pipelineID, Version: version}, nil
}

func newTestPipelineService(t *testing.T) *PipelineService {
	t.Helper()
	scheduler, err := NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = scheduler.Shutdown() })
	return NewPipelineService(
		pipelineStore, projectStore, jobStore, new(recordingStarter), scheduler, zap.NewNop(),
	)
}

func TestPipelineService_CreatePipeline(t *testing.T) {
	t.Run("success - pipeline is created in project", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		pipelineService := newTestPipelineService(t)
		pr, err := pipelineService.CreateProject(ctx, uniqueName("project"), "")
		require.NoError(t, err)

		// act
		p, err := pipelineService.CreatePipeline(ctx, pr.ProjectID, "api", "api pipeline", nil)

		// assert
		require.NoError(t, err)
		assert.Equal(t, pr.Name, p.ProjectName)
		assert.True(t, p.Active)
	})

	t.Run("failure - missing project", func(t *testing.T) {
		// arrange
		pipelineService := newTestPipelineService(t)

		// act
		_, err := pipelineService.CreatePipeline(context.Background(), 999999, "api", "", nil)

		// assert
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("failure - empty name", func(t *testing.T) {
		// arrange
		pipelineService := newTestPipelineService(t)

		// act
		_, err := pipelineService.CreatePipeline(context.Background(), 1, "", "", nil)

		// assert
		var invalid *InvalidInputError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestPipelineService_AddStage(t *testing.T) {
	t.Run("success - type and order are inferred", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := createTestPipeline(t, stageSpec{name: "build", stageType: store.StageGeneric})
		pipelineService := newTestPipelineService(t)

		// act
		st, err := pipelineService.AddStage(ctx, p.PipelineID, StageInput{Name: "Sonar Analysis"})

		// assert
		require.NoError(t, err)
		assert.Equal(t, store.StageQualityScan, st.StageType)
		assert.Equal(t, int64(2), st.StageOrder)
		assert.Equal(t, int64(3600), st.TimeoutSeconds)
	})

	t.Run("failure - external job stage without job", func(t *testing.T) {
		// arrange
		p := createTestPipeline(t)
		pipelineService := newTestPipelineService(t)

		// act
		_, err := pipelineService.AddStage(context.Background(), p.PipelineID, StageInput{
			Name:      "release",
			StageType: store.StageExternalJob,
		})

		// assert
		var invalid *InvalidInputError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("failure - unknown stage type", func(t *testing.T) {
		// arrange
		p := createTestPipeline(t)
		pipelineService := newTestPipelineService(t)

		// act
		_, err := pipelineService.AddStage(context.Background(), p.PipelineID, StageInput{
			Name:      "lint",
			StageType: "lint",
		})

		// assert
		var invalid *InvalidInputError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestPipelineService_ImportPipeline(t *testing.T) {
	t.Run("success - definition creates project, pipeline and stages", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		j := createTestJob(t)
		project := uniqueName("shop")
		data := []byte(`project: ` + project + `
name: deploy-app
description: build, scan and deploy
stages:
  - name: build
    script: |
      make build
      make test
  - name: sonar scan
  - name: release
    job: ` + j.Name + `
  - name: deploy
    type: deploy
    timeout_seconds: 120
`)
		pipelineService := newTestPipelineService(t)

		// act
		p, err := pipelineService.ImportPipeline(ctx, data, nil)

		// assert
		require.NoError(t, err)
		assert.Equal(t, "deploy-app", p.Name)
		assert.Equal(t, project, p.ProjectName)
		require.Len(t, p.Stages, 4)
		assert.Equal(t, store.StageGeneric, p.Stages[0].StageType)
		assert.Contains(t, p.Stages[0].Script, "make test")
		assert.Equal(t, store.StageQualityScan, p.Stages[1].StageType)
		assert.Equal(t, store.StageExternalJob, p.Stages[2].StageType)
		assert.Equal(t, &j.JobID, p.Stages[2].StageJobID)
		assert.Equal(t, store.StageDeploy, p.Stages[3].StageType)
		assert.Equal(t, int64(120), p.Stages[3].TimeoutSeconds)
	})

	t.Run("failure - unknown job removes the pipeline", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		project := uniqueName("shop")
		data := []byte(`project: ` + project + `
name: broken
stages:
  - name: build
  - name: release
    job: no-such-job
`)
		pipelineService := newTestPipelineService(t)

		// act
		_, err := pipelineService.ImportPipeline(ctx, data, nil)

		// assert
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
		pipelines, err := pipelineService.ListPipelines(ctx)
		require.NoError(t, err)
		for _, p := range pipelines {
			assert.False(t, p.ProjectName == project && p.Name == "broken")
		}
	})

	t.Run("failure - malformed yaml", func(t *testing.T) {
		// arrange
		pipelineService := newTestPipelineService(t)

		// act
		_, err := pipelineService.ImportPipeline(context.Background(), []byte("stages: [name"), nil)

		// assert
		var invalid *InvalidInputError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestPipelineService_UpdatePipelineSchedule(t *testing.T) {
	t.Run("success - schedule is registered", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := createTestPipeline(t)
		pipelineService := newTestPipelineService(t)

		// act
		err := pipelineService.UpdatePipelineSchedule(ctx, p.PipelineID, util.AsPtr("0 3 * * *"), nil)

		// assert
		require.NoError(t, err)
		updated, err := pipelineStore.ReadPipelineByID(ctx, p.PipelineID)
		require.NoError(t, err)
		require.NotNil(t, updated.ScheduleBranch)
		assert.Equal(t, "latest", *updated.ScheduleBranch)
		require.NotNil(t, updated.ScheduleJobID)
		assert.Len(t, pipelineService.scheduler.Jobs(), 1)
	})

	t.Run("success - schedule is removed", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := createTestPipeline(t)
		pipelineService := newTestPipelineService(t)
		require.NoError(t, pipelineService.UpdatePipelineSchedule(
			ctx, p.PipelineID, util.AsPtr("0 3 * * *"), util.AsPtr("main"),
		))

		// act
		err := pipelineService.UpdatePipelineSchedule(ctx, p.PipelineID, nil, nil)

		// assert
		require.NoError(t, err)
		updated, err := pipelineStore.ReadPipelineByID(ctx, p.PipelineID)
		require.NoError(t, err)
		assert.Nil(t, updated.Schedule)
		assert.Nil(t, updated.ScheduleJobID)
		assert.Empty(t, pipelineService.scheduler.Jobs())
	})

	t.Run("failure - invalid cron expression", func(t *testing.T) {
		// arrange
		p := createTestPipeline(t)
		pipelineService := newTestPipelineService(t)

		// act
		err := pipelineService.UpdatePipelineSchedule(
			context.Background(), p.PipelineID, util.AsPtr("every day"), nil,
		)

		// assert
		var invalid *InvalidInputError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestPipelineService_SchedulePipelineBuild(t *testing.T) {
	t.Run("success - scheduled task starts a build", func(t *testing.T) {
		// arrange
		starter := new(recordingStarter)
		scheduler, err := NewScheduler()
		require.NoError(t, err)
		defer scheduler.Shutdown()
		pipelineService := NewPipelineService(
			pipelineStore, projectStore, jobStore, starter, scheduler, zap.NewNop(),
		)
		jobID, err := pipelineService.SchedulePipelineBuild(1, "0 0 1 1 *", "release")
		require.NoError(t, err)
		require.NotNil(t, jobID)
		jobs := scheduler.Jobs()
		require.Len(t, jobs, 1)
		scheduler.Start()

		// act
		require.NoError(t, jobs[0].RunNow())

		// assert
		assert.Eventually(t, func() bool {
			starter.mu.Lock()
			defer starter.mu.Unlock()
			return len(starter.versions) == 1 && starter.versions[0] == "release"
		}, gocronWait, gocronTick)
	})
}

func TestPipelineService_DeletePipeline(t *testing.T) {
	t.Run("success - pipeline and schedule are removed", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := createTestPipeline(t, stageSpec{name: "build", stageType: store.StageGeneric})
		pipelineService := newTestPipelineService(t)
		require.NoError(t, pipelineService.UpdatePipelineSchedule(ctx, p.PipelineID, util.AsPtr("0 3 * * *"), nil))

		// act
		err := pipelineService.DeletePipeline(ctx, p.PipelineID)

		// assert
		require.NoError(t, err)
		_, err = pipelineService.GetPipeline(ctx, p.PipelineID)
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
		assert.Empty(t, pipelineService.scheduler.Jobs())
	})
}
