package session

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "emind:session:"
	fieldToken     = "token"
	fieldUser      = "user"
)

// RedisStore читает сессии из хешей Redis emind:session:{sid} с полями token и user.
// Запись сессий выполняет сервис авторизации.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore создаёт хранилище сессий поверх клиента Redis.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Load возвращает сессию по её идентификатору.
func (s *RedisStore) Load(ctx context.Context, sid string) (Session, error) {
	if s == nil || s.client == nil || sid == "" {
		return Session{}, ErrNoSession
	}

	fields, err := s.client.HGetAll(ctx, redisKeyPrefix+sid).Result()
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	return Build(fields[fieldToken], fields[fieldUser])
}
