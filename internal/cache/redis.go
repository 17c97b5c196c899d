// Package cache хранит в Redis последний наблюдавшийся статус платежа.
// Статус общий для тикера опроса и проверок, инициированных вебхуком,
// поэтому индикатор пользователя не редактируется без смены статуса.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/config"
)

type Cache struct {
	db  *redis.Client
	ttl time.Duration
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{db: db, ttl: 24 * time.Hour}, nil
}

func statusKey(paymentID string) string {
	return "payment:" + paymentID + ":status"
}

// LastStatus возвращает последний сохранённый статус платежа.
func (c *Cache) LastStatus(ctx context.Context, paymentID string) (string, bool, error) {
	const op = "cache.LastStatus"
	val, err := c.db.Get(ctx, statusKey(paymentID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return val, true, nil
}

// SetLastStatus сохраняет статус платежа. Ключ живёт сутки: дольше
// платёж в ожидании не опрашивается.
func (c *Cache) SetLastStatus(ctx context.Context, paymentID, status string) error {
	return c.db.Set(ctx, statusKey(paymentID), status, c.ttl).Err()
}

// Drop удаляет статус платежа после достижения конечного состояния.
func (c *Cache) Drop(ctx context.Context, paymentID string) error {
	return c.db.Del(ctx, statusKey(paymentID)).Err()
}

// Close закрывает соединение с Redis.
func (c *Cache) Close() error {
	return c.db.Close()
}
