// Package cache holds eventually consistent read caches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainAccess "farm-iot-provisioning/internal/domain/access"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// AccessCache caches a user's accessible-device listing.
type AccessCache interface {
	GetAccessible(ctx context.Context, userID uuid.UUID) ([]*domainAccess.AccessibleDevice, bool, error)
	SetAccessible(ctx context.Context, userID uuid.UUID, devices []*domainAccess.AccessibleDevice) error
	Invalidate(ctx context.Context, userIDs ...uuid.UUID) error
}

// RedisAccessCache stores listings as JSON with a TTL.
type RedisAccessCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisAccessCache(client *redis.Client, ttl time.Duration) *RedisAccessCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisAccessCache{client: client, ttl: ttl}
}

func AccessibleKey(userID uuid.UUID) string {
	return "accessible_devices:" + userID.String()
}

func (c *RedisAccessCache) GetAccessible(ctx context.Context, userID uuid.UUID) ([]*domainAccess.AccessibleDevice, bool, error) {
	val, err := c.client.Get(ctx, AccessibleKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read access cache: %w", err)
	}

	var devices []*domainAccess.AccessibleDevice
	if err := json.Unmarshal([]byte(val), &devices); err != nil {
		return nil, false, fmt.Errorf("failed to decode access cache entry: %w", err)
	}
	return devices, true, nil
}

func (c *RedisAccessCache) SetAccessible(ctx context.Context, userID uuid.UUID, devices []*domainAccess.AccessibleDevice) error {
	jsonValue, err := json.Marshal(devices)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, AccessibleKey(userID), jsonValue, c.ttl).Err()
}

func (c *RedisAccessCache) Invalidate(ctx context.Context, userIDs ...uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = AccessibleKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

// Ping checks the connection for health reporting.
func (c *RedisAccessCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// NoopAccessCache never stores anything.
type NoopAccessCache struct{}

func (NoopAccessCache) GetAccessible(context.Context, uuid.UUID) ([]*domainAccess.AccessibleDevice, bool, error) {
	return nil, false, nil
}

func (NoopAccessCache) SetAccessible(context.Context, uuid.UUID, []*domainAccess.AccessibleDevice) error {
	return nil
}

func (NoopAccessCache) Invalidate(context.Context, ...uuid.UUID) error {
	return nil
}
