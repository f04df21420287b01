package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const DefaultAsynqQueue = "buildcore"

// AsynqQueue distributes tasks over redis so several processes can share
// the work.
type AsynqQueue struct {
	client *asynq.Client
	server *asynq.Server
	mux    *Mux
	queue  string
	logger *zap.Logger
}

func NewAsynqQueue(
	opt asynq.RedisClientOpt,
	mux *Mux,
	concurrency int,
	logger *zap.Logger,
) *AsynqQueue {
	return &AsynqQueue{
		client: asynq.NewClient(opt),
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: max(concurrency, 1),
			Queues:      map[string]int{DefaultAsynqQueue: 1},
			Logger:      logger.Sugar(),
		}),
		mux:    mux,
		queue:  DefaultAsynqQueue,
		logger: logger,
	}
}

func (q *AsynqQueue) Enqueue(ctx context.Context, t Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(t.Kind, payload), q.taskOptions(t)...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", t.Kind, err)
	}
	q.logger.Debug("task enqueued",
		zap.String("kind", t.Kind),
		zap.Int64("ref_id", t.RefID),
		zap.String("task_id", info.ID),
	)
	return nil
}

// taskOptions sets an explicit timeout so long builds are not cut off by the
// asynq default of thirty minutes.
func (q *AsynqQueue) taskOptions(t Task) []asynq.Option {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return []asynq.Option{
		asynq.Queue(q.queue),
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
	}
}

func (q *AsynqQueue) Start() error {
	smux := asynq.NewServeMux()
	for _, kind := range q.mux.Kinds() {
		smux.HandleFunc(kind, q.handle)
	}
	return q.server.Start(smux)
}

func (q *AsynqQueue) Shutdown() {
	q.server.Shutdown()
	if err := q.client.Close(); err != nil {
		q.logger.Warn("closing asynq client", zap.Error(err))
	}
}

func (q *AsynqQueue) handle(ctx context.Context, at *asynq.Task) error {
	var t Task
	if err := json.Unmarshal(at.Payload(), &t); err != nil {
		q.logger.Error("invalid task payload", zap.String("kind", at.Type()), zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return q.mux.Dispatch(ctx, t)
}
