package redis

import (
	"context"
	"errors"
	"time"

	"github.com/chatflow/chatflow/logger"
	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/persistence"
	"github.com/chatflow/chatflow/util"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const SESSION_KEY = "SESSION"

var _ persistence.SessionStore = new(redisSessionStore)

type redisSessionStore struct {
	*baseDao
	ttl            time.Duration
	encoderDecoder util.EncoderDecoder[model.Session]
}

func NewRedisSessionStore(conf Config, ttl time.Duration) *redisSessionStore {
	return &redisSessionStore{
		baseDao:        newBaseDao(conf),
		ttl:            ttl,
		encoderDecoder: util.NewJsonEncoderDecoder[model.Session](),
	}
}

func (ss *redisSessionStore) Get(ctx context.Context, sessionId string) (*model.Session, error) {
	key := ss.getNamespaceKey(SESSION_KEY, sessionId)
	val, err := ss.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, model.ErrSessionNotFound
		}
		logger.Error("error in getting session", zap.String("sessionId", sessionId), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return ss.encoderDecoder.Decode([]byte(val))
}

func (ss *redisSessionStore) Save(ctx context.Context, session *model.Session) error {
	key := ss.getNamespaceKey(SESSION_KEY, session.Id)
	data, err := ss.encoderDecoder.Encode(*session)
	if err != nil {
		return err
	}
	if err := ss.redisClient.Set(ctx, key, data, ss.ttl).Err(); err != nil {
		logger.Error("error in saving session", zap.String("sessionId", session.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (ss *redisSessionStore) Delete(ctx context.Context, sessionId string) error {
	key := ss.getNamespaceKey(SESSION_KEY, sessionId)
	if err := ss.redisClient.Del(ctx, key).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
