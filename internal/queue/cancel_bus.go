package queue

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultCancelChannel = "buildcore:cancel"

// CancelBus broadcasts build cancellations to every process sharing the
// redis instance.
type CancelBus struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

func NewCancelBus(rdb *redis.Client, channel string, logger *zap.Logger) *CancelBus {
	return &CancelBus{rdb: rdb, channel: channel, logger: logger}
}

func (b *CancelBus) Publish(ctx context.Context, buildRecordID int64) error {
	return b.rdb.Publish(ctx, b.channel, strconv.FormatInt(buildRecordID, 10)).Err()
}

// Subscribe calls fn for each published build id until ctx is done.
func (b *CancelBus) Subscribe(ctx context.Context, fn func(buildRecordID int64)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			id, err := strconv.ParseInt(msg.Payload, 10, 64)
			if err != nil {
				b.logger.Warn("invalid cancel message", zap.String("payload", msg.Payload))
				continue
			}
			fn(id)
		}
	}
}
