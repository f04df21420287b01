package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qsplatform/buildcore/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobSQLStore_CreateJob(t *testing.T) {
	t.Run("success - job is created", func(t *testing.T) {
		// arrange
		c := generateCredential(t)

		// act
		j, err := jobStore.CreateJob(
			context.Background(),
			c.JobCredentialID, nil,
			"deploy-prod", "deploys prod", "http://jenkins.local/job/deploy-prod/",
		)

		// assert
		assert.NoError(t, err)
		assert.NotEqual(t, int64(0), j.JobID)
		assert.True(t, j.Active)
	})
	t.Run("failure - credential in use cannot be deleted", func(t *testing.T) {
		// arrange
		c := generateCredential(t)
		generateJob(t, c)

		// act
		err := credentialStore.DeleteCredential(context.Background(), c.JobCredentialID)

		// assert
		assert.True(t, IsForeignKeyConstraintError(err))
	})
}

func TestJobSQLStore_JobParameters(t *testing.T) {
	t.Run("success - parameters are replaced", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		j := generateJob(t, generateCredential(t))
		_, err := jobStore.ReplaceJobParameters(ctx, j.JobID, []JobParameter{
			{Name: "OLD", DisplayName: "OLD", ParameterType: "StringParameterDefinition"},
		})
		require.NoError(t, err)

		// act
		stored, replaceErr := jobStore.ReplaceJobParameters(ctx, j.JobID, []JobParameter{
			{
				Name:          "ENV",
				DisplayName:   "Target environment",
				ParameterType: "ChoiceParameterDefinition",
				DefaultValue:  "staging",
				Choices:       StringList{"staging", "prod"},
				Required:      true,
			},
			{Name: "DRY_RUN", DisplayName: "DRY_RUN", ParameterType: "BooleanParameterDefinition"},
		})
		params, listErr := jobStore.ListJobParameters(ctx, j.JobID)
		jobs, jobsErr := jobStore.ListJobs(ctx, true)

		// assert
		assert.NoError(t, replaceErr)
		assert.NoError(t, listErr)
		assert.NoError(t, jobsErr)
		assert.Len(t, stored, 2)
		require.Len(t, params, 2)
		assert.Equal(t, "ENV", params[0].Name)
		assert.Equal(t, StringList{"staging", "prod"}, params[0].Choices)
		assert.True(t, params[0].Required)
		assert.Equal(t, StringList{}, params[1].Choices)
		for _, listed := range jobs {
			if listed.JobID == j.JobID {
				assert.Equal(t, int64(2), listed.ParameterCount)
			}
		}
	})
}

func TestJobSQLStore_JobBuilds(t *testing.T) {
	t.Run("success - job build lifecycle", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		j := generateJob(t, generateCredential(t))
		started := time.Now().UTC().Add(-10 * time.Second)
		jb, err := jobStore.CreateJobBuild(
			ctx, j.JobID, uuid.NewString(), 42, j.JobURL+"42/",
			StringMap{"ENV": "prod"}, nil, started,
		)
		require.NoError(t, err)
		finished := time.Now().UTC()

		// act
		progressErr := jobStore.UpdateJobBuildProgress(ctx, jb.JobBuildID, StatusRunning, "building")
		ok, finishErr := jobStore.FinishJobBuild(
			ctx, jb.JobBuildID, StatusSuccess, util.AsPtr("done"), finished,
			DurationSeconds(&started, finished),
		)
		again, againErr := jobStore.FinishJobBuild(
			ctx, jb.JobBuildID, StatusFailed, nil, finished, 0,
		)
		stored, readErr := jobStore.ReadJobBuildByBuildID(ctx, jb.BuildID)

		// assert
		assert.NoError(t, progressErr)
		assert.NoError(t, finishErr)
		assert.NoError(t, againErr)
		assert.NoError(t, readErr)
		assert.True(t, ok)
		assert.False(t, again)
		assert.Equal(t, StatusSuccess, stored.Status)
		assert.Equal(t, "done", stored.Log)
		assert.Equal(t, int64(42), *stored.BuildNumber)
		assert.Equal(t, StringMap{"ENV": "prod"}, stored.Parameters)
		assert.Equal(t, int64(10), *stored.Duration)
		assert.Equal(t, j.Name, stored.JobName)
	})
	t.Run("success - list filters by job and status", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		j := generateJob(t, generateCredential(t))
		now := time.Now().UTC()
		jb1, _ := jobStore.CreateJobBuild(ctx, j.JobID, uuid.NewString(), 1, "", nil, nil, now)
		jb2, _ := jobStore.CreateJobBuild(ctx, j.JobID, uuid.NewString(), 2, "", nil, nil, now)
		_, _ = jobStore.FinishJobBuild(ctx, jb1.JobBuildID, StatusFailed, nil, now, 0)
		running := StatusRunning

		// act
		builds, err := jobStore.ListJobBuilds(ctx, JobBuildFilter{JobID: &j.JobID, Status: &running})
		active, activeErr := jobStore.ListJobBuildsByStatus(ctx, StatusRunning)

		// assert
		assert.NoError(t, err)
		assert.NoError(t, activeErr)
		require.Len(t, builds, 1)
		assert.Equal(t, jb2.JobBuildID, builds[0].JobBuildID)
		assert.Equal(t, StringMap{}, builds[0].Parameters)
		ids := make([]int64, 0, len(active))
		for _, b := range active {
			ids = append(ids, b.JobBuildID)
		}
		assert.Contains(t, ids, jb2.JobBuildID)
		assert.NotContains(t, ids, jb1.JobBuildID)
	})
	t.Run("failure - job build not found", func(t *testing.T) {
		// act
		jb, err := jobStore.ReadJobBuildByID(context.Background(), 99999)

		// assert
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, jb)
	})
}
