package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisRepo кеш уведомлений поверх Redis.
type RedisRepo struct {
	client *redis.Client
}

// NewRedisRepo создает новый экземпляр RedisRepo.
func NewRedisRepo(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client}
}

// Get получает значение по ключу.
func (r *RedisRepo) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

// SetWithExpiration устанавливает значение с временем жизни.
func (r *RedisRepo) SetWithExpiration(ctx context.Context, key string,
	value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Delete удаляет значение по ключу.
func (r *RedisRepo) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
