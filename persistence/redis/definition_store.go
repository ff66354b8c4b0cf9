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

const FLOW_DEF = "FLOW_DEF"

var _ persistence.DefinitionStore = new(redisDefinitionStore)

type redisDefinitionStore struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.FlowDefinition]
}

func NewRedisDefinitionStore(conf Config) *redisDefinitionStore {
	return &redisDefinitionStore{
		baseDao:        newBaseDao(conf),
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowDefinition](),
	}
}

func (ds *redisDefinitionStore) Save(ctx context.Context, def *model.FlowDefinition) error {
	key := ds.getNamespaceKey(FLOW_DEF)
	data, err := ds.encoderDecoder.Encode(*def)
	if err != nil {
		return err
	}
	if err := ds.redisClient.HSet(ctx, key, def.Id, string(data)).Err(); err != nil {
		logger.Error("error in saving flow definition", zap.String("flow", def.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (ds *redisDefinitionStore) Get(ctx context.Context, id string) (*model.FlowDefinition, error) {
	key := ds.getNamespaceKey(FLOW_DEF)
	val, err := ds.redisClient.HGet(ctx, key, id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, model.ErrFlowNotFound
		}
		logger.Error("error in getting flow definition", zap.String("flow", id), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return ds.encoderDecoder.Decode([]byte(val))
}

func (ds *redisDefinitionStore) List(ctx context.Context) ([]*model.FlowDefinition, error) {
	key := ds.getNamespaceKey(FLOW_DEF)
	vals, err := ds.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defs := make([]*model.FlowDefinition, 0, len(vals))
	for _, val := range vals {
		def, err := ds.encoderDecoder.Decode([]byte(val))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (ds *redisDefinitionStore) Delete(ctx context.Context, id string) error {
	key := ds.getNamespaceKey(FLOW_DEF)
	if err := ds.redisClient.HDel(ctx, key, id).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
