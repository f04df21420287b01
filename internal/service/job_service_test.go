package service

import (
	"context"
	"testing"
	"time"

	"github.com/qsplatform/buildcore/internal"
	"github.com/qsplatform/buildcore/internal/jenkins"
	"github.com/qsplatform/buildcore/internal/queue"
	"github.com/qsplatform/buildcore/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestJobService(client CIClient, q Enqueuer) *JobService {
	return NewJobService(jobStore, credentialStore, &fakeClientFactory{client: client}, q, fixedUUID("jb"), zap.NewNop())
}

func createTestCredential(t *testing.T) *store.JobCredential {
	t.Helper()
	c, err := credentialStore.CreateCredential(context.Background(), uniqueName("cred"), "http://ci.local", "ci", "hash")
	require.NoError(t, err)
	return c
}

func TestJobService_CreateJob(t *testing.T) {
	t.Run("success - parameters are parsed and stored", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		c := createTestCredential(t)
		client := &fakeCIClient{params: []jenkins.ParamInfo{
			{Name: "BRANCH", Type: "StringParameterDefinition", DefaultValue: "main"},
			{Name: "ENV", Type: "ChoiceParameterDefinition", Choices: []string{"dev", "prod"}},
		}}
		jobService := newTestJobService(client, new(recordingQueue))

		// act
		j, err := jobService.CreateJob(ctx, JobInput{
			CredentialID:    c.JobCredentialID,
			Name:            uniqueName("job"),
			JobURL:          "http://ci.local/job/app",
			ParseParameters: true,
		})

		// assert
		require.NoError(t, err)
		assert.Equal(t, "http://ci.local/job/app/", j.JobURL)
		assert.Equal(t, int64(2), j.ParameterCount)
		params, err := jobService.ListJobParameters(ctx, j.JobID)
		require.NoError(t, err)
		require.Len(t, params, 2)
		assert.Equal(t, "BRANCH", params[0].Name)
		assert.True(t, params[0].Required)
		assert.Equal(t, store.StringList{"dev", "prod"}, params[1].Choices)
	})

	t.Run("success - job without parameters", func(t *testing.T) {
		// arrange
		c := createTestCredential(t)
		client := &fakeCIClient{paramsErr: jenkins.ErrNoData}
		jobService := newTestJobService(client, new(recordingQueue))

		// act
		j, err := jobService.CreateJob(context.Background(), JobInput{
			CredentialID:    c.JobCredentialID,
			Name:            uniqueName("job"),
			JobURL:          "http://ci.local/job/plain/",
			ParseParameters: true,
		})

		// assert
		require.NoError(t, err)
		assert.Equal(t, int64(0), j.ParameterCount)
	})

	t.Run("failure - ci server error creates nothing", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		c := createTestCredential(t)
		client := &fakeCIClient{paramsErr: &jenkins.ServiceError{Op: "job info", StatusCode: 500}}
		jobService := newTestJobService(client, new(recordingQueue))
		name := uniqueName("job")

		// act
		j, err := jobService.CreateJob(ctx, JobInput{
			CredentialID:    c.JobCredentialID,
			Name:            name,
			JobURL:          "http://ci.local/job/app/",
			ParseParameters: true,
		})

		// assert
		var svcErr *jenkins.ServiceError
		assert.ErrorAs(t, err, &svcErr)
		assert.Nil(t, j)
		_, err = jobStore.ReadJobByName(ctx, name)
		assert.Error(t, err)
	})

	t.Run("failure - inactive credential", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		c := createTestCredential(t)
		require.NoError(t, credentialStore.UpdateCredentialActive(ctx, c.JobCredentialID, false))
		jobService := newTestJobService(&fakeCIClient{}, new(recordingQueue))

		// act
		_, err := jobService.CreateJob(ctx, JobInput{
			CredentialID: c.JobCredentialID,
			Name:         uniqueName("job"),
			JobURL:       "http://ci.local/job/app/",
		})

		// assert
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
	})
}

func TestJobService_TriggerJob(t *testing.T) {
	t.Run("success - defaults are filled and tracking is queued", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		j := createTestJob(t)
		_, err := jobStore.ReplaceJobParameters(ctx, j.JobID, []store.JobParameter{
			{Name: "BRANCH", ParameterType: "StringParameterDefinition", DefaultValue: "main", Required: true},
			{Name: "ENV", ParameterType: "StringParameterDefinition", Required: true},
		})
		require.NoError(t, err)
		client := &fakeCIClient{number: 42}
		q := new(recordingQueue)
		jobService := newTestJobService(client, q)

		// act
		jb, err := jobService.TriggerJob(ctx, j.JobID, map[string]string{"ENV": "prod"}, nil)

		// assert
		require.NoError(t, err)
		require.NotNil(t, jb.BuildNumber)
		assert.Equal(t, int64(42), *jb.BuildNumber)
		assert.Equal(t, "http://ci.local/job/app/42/", jb.ExternalURL)
		assert.Equal(t, store.StatusRunning, jb.Status)
		assert.NotNil(t, jb.StartedOn)
		require.Len(t, client.triggered, 1)
		assert.Equal(t, map[string]string{"BRANCH": "main", "ENV": "prod"}, client.triggered[0])
		assert.True(t, q.contains(queue.Task{Kind: queue.KindTrackJob, RefID: jb.JobBuildID}))
		task, _ := q.find(queue.KindTrackJob, jb.JobBuildID)
		assert.Equal(t, internal.Config.TrackTimeoutSeconds.Duration(), task.Timeout)
		assert.Greater(t, task.Timeout, 30*time.Minute)
	})

	t.Run("failure - required parameter without value", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		j := createTestJob(t)
		_, err := jobStore.ReplaceJobParameters(ctx, j.JobID, []store.JobParameter{
			{Name: "ENV", ParameterType: "StringParameterDefinition", Required: true},
		})
		require.NoError(t, err)
		client := &fakeCIClient{number: 1}
		jobService := newTestJobService(client, new(recordingQueue))

		// act
		_, err = jobService.TriggerJob(ctx, j.JobID, nil, nil)

		// assert
		var invalid *InvalidInputError
		assert.ErrorAs(t, err, &invalid)
		assert.Empty(t, client.triggered)
	})

	t.Run("failure - trigger without build number", func(t *testing.T) {
		// arrange
		j := createTestJob(t)
		jobService := newTestJobService(&fakeCIClient{number: 0}, new(recordingQueue))

		// act
		_, err := jobService.TriggerJob(context.Background(), j.JobID, nil, nil)

		// assert
		var svcErr *jenkins.ServiceError
		assert.ErrorAs(t, err, &svcErr)
		assert.ErrorIs(t, err, jenkins.ErrNoData)
	})

	t.Run("failure - unknown job", func(t *testing.T) {
		// arrange
		jobService := newTestJobService(&fakeCIClient{}, new(recordingQueue))

		// act
		_, err := jobService.TriggerJob(context.Background(), 999999, nil, nil)

		// assert
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
	})
}

func TestJobService_GetJobBuild(t *testing.T) {
	t.Run("failure - unknown build id", func(t *testing.T) {
		// arrange
		jobService := newTestJobService(&fakeCIClient{}, new(recordingQueue))

		// act
		_, err := jobService.GetJobBuild(context.Background(), "missing")

		// assert
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
	})
}
