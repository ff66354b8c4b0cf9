package redis

import (
	"context"

	"github.com/chatflow/chatflow/persistence"
)

const TRAINING_QUEUE = "TRAINING_QUEUE"

var _ persistence.TrainingQueue = new(redisTrainingQueue)

type redisTrainingQueue struct {
	*baseDao
}

func NewRedisTrainingQueue(conf Config) *redisTrainingQueue {
	return &redisTrainingQueue{
		baseDao: newBaseDao(conf),
	}
}

func (tq *redisTrainingQueue) Push(ctx context.Context, sample []byte) error {
	key := tq.getNamespaceKey(TRAINING_QUEUE)
	if err := tq.redisClient.LPush(ctx, key, sample).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (tq *redisTrainingQueue) Pop(ctx context.Context, batchSize int) ([][]byte, error) {
	key := tq.getNamespaceKey(TRAINING_QUEUE)
	var out [][]byte
	for i := 0; i < batchSize; i++ {
		val, err := tq.redisClient.RPop(ctx, key).Result()
		if err != nil {
			break
		}
		out = append(out, []byte(val))
	}
	return out, nil
}
