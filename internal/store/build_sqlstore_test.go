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

func TestBuildSQLStore_CreateBuild(t *testing.T) {
	t.Run("success - build is created pending", func(t *testing.T) {
		// arrange
		p := generatePipeline(t)
		u := generateUser(t, nil)
		buildID := uuid.NewString()

		// act
		b, err := buildStore.CreateBuild(
			context.Background(),
			p.PipelineID, buildID, "release-1.2", &u.UserID,
		)

		// assert
		assert.NoError(t, err)
		assert.NotEqual(t, int64(0), b.BuildRecordID)
		assert.Equal(t, StatusPending, b.Status)
		assert.Equal(t, buildID, b.BuildID)
		assert.Equal(t, u.UserID, *b.TriggeredBy)
	})
	t.Run("success - same version produces independent builds", func(t *testing.T) {
		// arrange
		p := generatePipeline(t)

		// act
		b1 := generateBuild(t, p)
		b2 := generateBuild(t, p)

		// assert
		assert.NotEqual(t, b1.BuildRecordID, b2.BuildRecordID)
		assert.NotEqual(t, b1.BuildID, b2.BuildID)
	})
	t.Run("failure - unknown pipeline", func(t *testing.T) {
		// act
		b, err := buildStore.CreateBuild(
			context.Background(), 987654, uuid.NewString(), "v1", nil,
		)

		// assert
		assert.Error(t, err)
		assert.True(t, IsForeignKeyConstraintError(err))
		assert.Nil(t, b)
	})
}

func TestBuildSQLStore_ReadBuild(t *testing.T) {
	t.Run("success - build found by build id", func(t *testing.T) {
		// arrange
		p := generatePipeline(t)
		expected := generateBuild(t, p)

		// act
		b, err := buildStore.ReadBuildByBuildID(context.Background(), expected.BuildID)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, expected.BuildRecordID, b.BuildRecordID)
		assert.Equal(t, p.Name, b.PipelineName)
		assert.Equal(t, int64(1), b.RowVersion)
	})
	t.Run("failure - build not found", func(t *testing.T) {
		// act
		b, err := buildStore.ReadBuildByID(context.Background(), 43241)

		// assert
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, b)
	})
}

func TestBuildSQLStore_StatusTransitions(t *testing.T) {
	t.Run("success - pending to running to success", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := generatePipeline(t)
		b := generateBuild(t, p)
		started := time.Now().UTC().Add(-3 * time.Second)
		finished := started.Add(3 * time.Second)

		// act
		running, runErr := buildStore.MarkBuildRunning(ctx, b.BuildRecordID, started)
		finishedOK, finishErr := buildStore.FinishBuild(
			ctx, b.BuildRecordID, StatusSuccess, finished, DurationSeconds(&started, finished),
		)
		stored, readErr := buildStore.ReadBuildByID(ctx, b.BuildRecordID)

		// assert
		assert.NoError(t, runErr)
		assert.NoError(t, finishErr)
		assert.NoError(t, readErr)
		assert.True(t, running)
		assert.True(t, finishedOK)
		assert.Equal(t, StatusSuccess, stored.Status)
		assert.Equal(t, int64(3), *stored.Duration)
		assert.WithinDuration(t, started, *stored.StartedOn, time.Millisecond)
		assert.WithinDuration(t, finished, *stored.FinishedOn, time.Millisecond)
		assert.Equal(t, int64(3), stored.RowVersion)
	})
	t.Run("failure - running is only entered from pending", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := generatePipeline(t)
		b := generateBuild(t, p)
		_, err := buildStore.MarkBuildRunning(ctx, b.BuildRecordID, time.Now().UTC())
		require.NoError(t, err)

		// act
		ok, err := buildStore.MarkBuildRunning(ctx, b.BuildRecordID, time.Now().UTC())

		// assert
		assert.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("failure - aborted build is not finished", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := generatePipeline(t)
		b := generateBuild(t, p)
		_, err := buildStore.MarkBuildRunning(ctx, b.BuildRecordID, time.Now().UTC())
		require.NoError(t, err)
		aborted, err := buildStore.AbortBuild(ctx, b.BuildRecordID, time.Now().UTC())
		require.NoError(t, err)
		require.True(t, aborted)

		// act
		ok, err := buildStore.FinishBuild(ctx, b.BuildRecordID, StatusSuccess, time.Now().UTC(), 1)
		status, readErr := buildStore.ReadBuildStatus(ctx, b.BuildRecordID)

		// assert
		assert.NoError(t, err)
		assert.NoError(t, readErr)
		assert.False(t, ok)
		assert.Equal(t, StatusAborted, status)
	})
}

func TestBuildSQLStore_AbortBuild(t *testing.T) {
	t.Run("success - pending build is aborted with finished_on", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := generatePipeline(t)
		b := generateBuild(t, p)
		now := time.Now().UTC()

		// act
		ok, err := buildStore.AbortBuild(ctx, b.BuildRecordID, now)
		stored, readErr := buildStore.ReadBuildByID(ctx, b.BuildRecordID)

		// assert
		assert.NoError(t, err)
		assert.NoError(t, readErr)
		assert.True(t, ok)
		assert.Equal(t, StatusAborted, stored.Status)
		assert.WithinDuration(t, now, *stored.FinishedOn, time.Millisecond)
		assert.Equal(t, int64(0), *stored.Duration)
	})
	t.Run("failure - successful build is untouched", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := generatePipeline(t)
		b := generateBuild(t, p)
		now := time.Now().UTC()
		_, _ = buildStore.MarkBuildRunning(ctx, b.BuildRecordID, now)
		_, _ = buildStore.FinishBuild(ctx, b.BuildRecordID, StatusSuccess, now, 0)

		// act
		ok, err := buildStore.AbortBuild(ctx, b.BuildRecordID, now.Add(time.Minute))
		stored, readErr := buildStore.ReadBuildByID(ctx, b.BuildRecordID)

		// assert
		assert.NoError(t, err)
		assert.NoError(t, readErr)
		assert.False(t, ok)
		assert.Equal(t, StatusSuccess, stored.Status)
	})
	t.Run("success - row_version bump between read and update does not block the abort", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		b := generateBuild(t, generatePipeline(t))
		now := time.Now().UTC()
		_, _ = buildStore.MarkBuildRunning(ctx, b.BuildRecordID, now.Add(-time.Minute))
		bump := func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(
				ctx,
				"update build_records set row_version = row_version + 1 where build_record_id = $1",
				b.BuildRecordID,
			)
			return err
		}

		// act
		ok, err := buildStore.abortBuild(ctx, b.BuildRecordID, now, bump)
		stored, readErr := buildStore.ReadBuildByID(ctx, b.BuildRecordID)

		// assert
		assert.NoError(t, err)
		assert.NoError(t, readErr)
		assert.True(t, ok)
		assert.Equal(t, StatusAborted, stored.Status)
		assert.InDelta(t, 60, *stored.Duration, 1)
	})
	t.Run("success - status change between read and update is retried", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		b := generateBuild(t, generatePipeline(t))
		now := time.Now().UTC()
		calls := 0
		moveToRunning := func(ctx context.Context, tx *sql.Tx) error {
			calls++
			_, err := tx.ExecContext(
				ctx,
				"update build_records set status = $1 where build_record_id = $2",
				StatusRunning, b.BuildRecordID,
			)
			return err
		}

		// act
		ok, err := buildStore.abortBuild(ctx, b.BuildRecordID, now, moveToRunning)
		status, readErr := buildStore.ReadBuildStatus(ctx, b.BuildRecordID)

		// assert
		assert.NoError(t, err)
		assert.NoError(t, readErr)
		assert.True(t, ok)
		assert.Equal(t, 1, calls)
		assert.Equal(t, StatusAborted, status)
	})
}

func TestBuildSQLStore_FailPendingBuild(t *testing.T) {
	t.Run("success - pending build is failed", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		b := generateBuild(t, generatePipeline(t))

		// act
		ok, err := buildStore.FailPendingBuild(ctx, b.BuildRecordID, time.Now().UTC())
		status, readErr := buildStore.ReadBuildStatus(ctx, b.BuildRecordID)

		// assert
		assert.NoError(t, err)
		assert.NoError(t, readErr)
		assert.True(t, ok)
		assert.Equal(t, StatusFailed, status)
	})
	t.Run("failure - running build is untouched", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		b := generateBuild(t, generatePipeline(t))
		_, _ = buildStore.MarkBuildRunning(ctx, b.BuildRecordID, time.Now().UTC())

		// act
		ok, err := buildStore.FailPendingBuild(ctx, b.BuildRecordID, time.Now().UTC())
		status, readErr := buildStore.ReadBuildStatus(ctx, b.BuildRecordID)

		// assert
		assert.NoError(t, err)
		assert.NoError(t, readErr)
		assert.False(t, ok)
		assert.Equal(t, StatusRunning, status)
	})
}

func TestBuildSQLStore_UpdateBuildScan(t *testing.T) {
	t.Run("success - scan fields are stored", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := generatePipeline(t)
		b := generateBuild(t, p)
		_, _ = buildStore.MarkBuildRunning(ctx, b.BuildRecordID, time.Now().UTC())
		taskID := "task_1700000000"
		gate := "PASSED"
		risk := 12.5

		// act
		taskOK, taskErr := buildStore.UpdateBuildScan(ctx, b.BuildRecordID, &taskID, nil, nil)
		gateOK, gateErr := buildStore.UpdateBuildScan(ctx, b.BuildRecordID, nil, &gate, &risk)
		stored, readErr := buildStore.ReadBuildByID(ctx, b.BuildRecordID)

		// assert
		assert.NoError(t, taskErr)
		assert.NoError(t, gateErr)
		assert.NoError(t, readErr)
		assert.True(t, taskOK)
		assert.True(t, gateOK)
		assert.Equal(t, taskID, *stored.SonarTaskID)
		assert.Equal(t, gate, *stored.SonarQualityGate)
		assert.Equal(t, risk, *stored.RiskScore)
	})
	t.Run("failure - aborted build keeps no scan fields", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		b := generateBuild(t, generatePipeline(t))
		now := time.Now().UTC()
		_, _ = buildStore.MarkBuildRunning(ctx, b.BuildRecordID, now)
		_, _ = buildStore.AbortBuild(ctx, b.BuildRecordID, now)
		taskID := "task_1700000001"
		risk := 40.0

		// act
		ok, err := buildStore.UpdateBuildScan(ctx, b.BuildRecordID, &taskID, nil, &risk)
		stored, readErr := buildStore.ReadBuildByID(ctx, b.BuildRecordID)

		// assert
		assert.NoError(t, err)
		assert.NoError(t, readErr)
		assert.False(t, ok)
		assert.Nil(t, stored.SonarTaskID)
		assert.Nil(t, stored.RiskScore)
		assert.Equal(t, StatusAborted, stored.Status)
	})
}

func TestBuildSQLStore_AppendBuildLog(t *testing.T) {
	t.Run("success - log lines are appended", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := generatePipeline(t)
		b := generateBuild(t, p)

		// act
		err1 := buildStore.AppendBuildLog(ctx, b.BuildRecordID, "first\n")
		err2 := buildStore.AppendBuildLog(ctx, b.BuildRecordID, "second\n")
		stored, readErr := buildStore.ReadBuildByID(ctx, b.BuildRecordID)

		// assert
		assert.NoError(t, err1)
		assert.NoError(t, err2)
		assert.NoError(t, readErr)
		assert.Equal(t, "first\nsecond\n", stored.Log)
	})
}

func TestBuildSQLStore_ListBuilds(t *testing.T) {
	t.Run("success - filter by pipeline and status", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := generatePipeline(t)
		other := generatePipeline(t)
		b1 := generateBuild(t, p)
		b2 := generateBuild(t, p)
		generateBuild(t, other)
		_, _ = buildStore.AbortBuild(ctx, b2.BuildRecordID, time.Now().UTC())
		aborted := StatusAborted

		// act
		all, allErr := buildStore.ListBuilds(ctx, BuildFilter{PipelineID: &p.PipelineID})
		onlyAborted, abortedErr := buildStore.ListBuilds(
			ctx, BuildFilter{PipelineID: &p.PipelineID, Status: &aborted},
		)

		// assert
		assert.NoError(t, allErr)
		assert.NoError(t, abortedErr)
		assert.Len(t, all, 2)
		assert.Equal(t, b2.BuildRecordID, all[0].BuildRecordID)
		assert.Equal(t, b1.BuildRecordID, all[1].BuildRecordID)
		assert.Empty(t, all[0].Log)
		assert.Len(t, onlyAborted, 1)
		assert.Equal(t, b2.BuildRecordID, onlyAborted[0].BuildRecordID)
	})
	t.Run("success - filter by date range and limit", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := generatePipeline(t)
		before := time.Now().UTC().Add(-time.Second)
		generateBuild(t, p)
		generateBuild(t, p)
		future := time.Now().UTC().Add(time.Hour)

		// act
		inRange, inErr := buildStore.ListBuilds(ctx, BuildFilter{
			PipelineID: &p.PipelineID, From: &before, Limit: 1,
		})
		outOfRange, outErr := buildStore.ListBuilds(ctx, BuildFilter{
			PipelineID: &p.PipelineID, From: &future,
		})

		// assert
		assert.NoError(t, inErr)
		assert.NoError(t, outErr)
		assert.Len(t, inRange, 1)
		assert.Empty(t, outOfRange)
	})
}

func TestBuildSQLStore_ListActiveBuildIDs(t *testing.T) {
	t.Run("success - only pending and running builds", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := generatePipeline(t)
		pending := generateBuild(t, p)
		running := generateBuild(t, p)
		done := generateBuild(t, p)
		now := time.Now().UTC()
		_, _ = buildStore.MarkBuildRunning(ctx, running.BuildRecordID, now)
		_, _ = buildStore.MarkBuildRunning(ctx, done.BuildRecordID, now)
		_, _ = buildStore.FinishBuild(ctx, done.BuildRecordID, StatusFailed, now, 0)

		// act
		ids, err := buildStore.ListActiveBuildIDs(ctx, p.PipelineID)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, []int64{pending.BuildRecordID, running.BuildRecordID}, ids)
	})
}

func TestBuildSQLStore_StageRecords(t *testing.T) {
	t.Run("success - records listed in stage order", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		p := generatePipeline(t)
		deploy := generateStage(t, p, "deploy", 3)
		checkout := generateStage(t, p, "checkout", 1)
		b := generateBuild(t, p)
		now := time.Now().UTC()
		r1, err := buildStore.CreateStageRecord(ctx, b.BuildRecordID, deploy.StageID, now)
		require.NoError(t, err)
		r2, err := buildStore.CreateStageRecord(ctx, b.BuildRecordID, checkout.StageID, now)
		require.NoError(t, err)

		// act
		finishErr := buildStore.FinishStageRecord(ctx, r2.StageRecordID, StatusSuccess, now, "ok")
		records, listErr := buildStore.ListStageRecords(ctx, b.BuildRecordID)

		// assert
		assert.NoError(t, finishErr)
		assert.NoError(t, listErr)
		require.Len(t, records, 2)
		assert.Equal(t, r2.StageRecordID, records[0].StageRecordID)
		assert.Equal(t, "checkout", records[0].StageName)
		assert.Equal(t, StatusSuccess, records[0].Status)
		assert.Equal(t, "ok", records[0].LogSnippet)
		assert.Equal(t, r1.StageRecordID, records[1].StageRecordID)
		assert.Equal(t, StatusRunning, records[1].Status)
	})
}

func TestDurationSeconds(t *testing.T) {
	now := time.Now().UTC()
	assert.Equal(t, int64(0), DurationSeconds(nil, now))
	assert.Equal(t, int64(90), DurationSeconds(util.AsPtr(now.Add(-90*time.Second)), now))
	assert.Equal(t, int64(0), DurationSeconds(util.AsPtr(now.Add(time.Minute)), now))
}
