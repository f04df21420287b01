package queue

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

func optionValues(opts []asynq.Option) map[asynq.OptionType]any {
	values := make(map[asynq.OptionType]any, len(opts))
	for _, opt := range opts {
		values[opt.Type()] = opt.Value()
	}
	return values
}

func TestAsynqQueue_taskOptions(t *testing.T) {
	t.Run("success - task timeout replaces the asynq default", func(t *testing.T) {
		// arrange
		q := &AsynqQueue{queue: DefaultAsynqQueue}
		task := Task{Kind: KindExecuteBuild, RefID: 3, Timeout: 3 * time.Hour}

		// act
		values := optionValues(q.taskOptions(task))

		// assert
		assert.Equal(t, 3*time.Hour, values[asynq.TimeoutOpt])
		assert.Equal(t, DefaultAsynqQueue, values[asynq.QueueOpt])
		assert.Equal(t, 0, values[asynq.MaxRetryOpt])
	})
	t.Run("success - task without timeout gets the default", func(t *testing.T) {
		// arrange
		q := &AsynqQueue{queue: DefaultAsynqQueue}

		// act
		values := optionValues(q.taskOptions(Task{Kind: KindTrackJob, RefID: 4}))

		// assert
		assert.Equal(t, DefaultTaskTimeout, values[asynq.TimeoutOpt])
		assert.Greater(t, values[asynq.TimeoutOpt].(time.Duration), 30*time.Minute)
	})
}
