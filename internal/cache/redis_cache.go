package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"retailpos/backend/internal/domain"
)

type RedisSessionCache struct {
	client *redis.Client
}

func NewRedisSessionCache(addr string, password string, db int) *RedisSessionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSessionCache{client: client}
}

func (c *RedisSessionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSessionCache) Close() error {
	return c.client.Close()
}

func (c *RedisSessionCache) GetCart(ctx context.Context, sessionID string) (*domain.Cart, bool, error) {
	val, err := c.client.Get(ctx, cartKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cart domain.Cart
	if err := json.Unmarshal([]byte(val), &cart); err != nil {
		return nil, false, err
	}
	return &cart, true, nil
}

func (c *RedisSessionCache) SetCart(ctx context.Context, cart *domain.Cart, ttl time.Duration) error {
	if cart == nil {
		return nil
	}
	payload, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cartKey(cart.SessionID), payload, ttl).Err()
}

func (c *RedisSessionCache) DeleteCart(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, cartKey(sessionID)).Err()
}

func cartKey(sessionID string) string {
	return "cart:" + sessionID
}
