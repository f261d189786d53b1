package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type redisStorage struct {
	client *redis.Client
}

//NewRedis connects to a redis server and verifies the connection with PING
func NewRedis(ctx context.Context, addr, password string, db int, log zerolog.Logger) (Storage, error) {
	if addr == "" {
		return nil, errors.New("redis storage requires an address")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	log.Info().Str("addr", addr).Int("db", db).Msg("using redis storage")

	return NewRedisFromClient(client), nil
}

//NewRedisFromClient wraps an existing client
func NewRedisFromClient(client *redis.Client) Storage {
	return &redisStorage{client: client}
}

func (rs *redisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := rs.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (rs *redisStorage) Set(ctx context.Context, key string, value []byte) error {
	return rs.client.Set(ctx, key, value, 0).Err()
}

func (rs *redisStorage) Remove(ctx context.Context, key string) error {
	return rs.client.Del(ctx, key).Err()
}

func (rs *redisStorage) Close() error {
	return rs.client.Close()
}
