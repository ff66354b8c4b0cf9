package redis

import (
	"context"
	"errors"

	"github.com/chatflow/chatflow/logger"
	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/persistence"
	"github.com/chatflow/chatflow/util"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const RUN_KEY = "RUN"
const RUN_SESSION_KEY = "RUN_SESSION"

var _ persistence.FlowRunStore = new(redisRunStore)

type redisRunStore struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.FlowRun]
}

func NewRedisRunStore(conf Config) *redisRunStore {
	return &redisRunStore{
		baseDao:        newBaseDao(conf),
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowRun](),
	}
}

func (rs *redisRunStore) Save(ctx context.Context, run *model.FlowRun) error {
	key := rs.getNamespaceKey(RUN_KEY, run.Id)
	data, err := rs.encoderDecoder.Encode(*run)
	if err != nil {
		return err
	}
	sessionKey := rs.getNamespaceKey(RUN_SESSION_KEY, run.SessionId)
	pipe := rs.redisClient.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, sessionKey, run.Id)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("error in saving flow run", zap.String("runId", run.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rs *redisRunStore) Get(ctx context.Context, id string) (*model.FlowRun, error) {
	key := rs.getNamespaceKey(RUN_KEY, id)
	val, err := rs.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, model.ErrRunNotFound
		}
		logger.Error("error in getting flow run", zap.String("runId", id), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rs.encoderDecoder.Decode([]byte(val))
}

func (rs *redisRunStore) ListBySession(ctx context.Context, sessionId string) ([]*model.FlowRun, error) {
	sessionKey := rs.getNamespaceKey(RUN_SESSION_KEY, sessionId)
	ids, err := rs.redisClient.SMembers(ctx, sessionKey).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	runs := make([]*model.FlowRun, 0, len(ids))
	for _, id := range ids {
		run, err := rs.Get(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrRunNotFound) {
				continue
			}
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (rs *redisRunStore) Delete(ctx context.Context, id string) error {
	run, err := rs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrRunNotFound) {
			return nil
		}
		return err
	}
	key := rs.getNamespaceKey(RUN_KEY, id)
	sessionKey := rs.getNamespaceKey(RUN_SESSION_KEY, run.SessionId)
	pipe := rs.redisClient.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, sessionKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
