package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "account-service/internal/domain/user"
)

// keyPrefix namespaces cache keys so the Redis DB can be shared.
const keyPrefix = "account:user:"

// UserCache caches user records by ID for profile reads.
// Cached records never carry the password hash.
type UserCache interface {
	// Get returns the cached user, or nil on a miss.
	Get(ctx context.Context, id string) (*domain.User, error)

	// Set stores a user with the configured TTL.
	Set(ctx context.Context, user *domain.User) error

	// Delete evicts users by ID.
	Delete(ctx context.Context, ids ...string) error
}

// entry is the cached form of a user.
type entry struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RedisUserCache implements UserCache using Redis as the backing store.
type RedisUserCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisUserCache creates a new Redis-backed user cache.
func NewRedisUserCache(client redis.UniversalClient, ttl time.Duration, log *zap.Logger) *RedisUserCache {
	return &RedisUserCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func cacheKey(id string) string {
	return keyPrefix + id
}

// Get retrieves a user from Redis.
func (c *RedisUserCache) Get(ctx context.Context, id string) (*domain.User, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.log.Debug("cache miss", zap.String("user_id", id))
		return nil, nil
	}
	if err != nil {
		c.log.Error("failed to get from cache", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("cache get %s: %w", id, err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.log.Error("failed to unmarshal cached user", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("cache decode %s: %w", id, err)
	}

	c.log.Debug("cache hit", zap.String("user_id", id))
	return &domain.User{
		ID:        e.ID,
		Username:  e.Username,
		Email:     e.Email,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, nil
}

// Set stores a user in Redis with the TTL, dropping the password hash.
func (c *RedisUserCache) Set(ctx context.Context, user *domain.User) error {
	if user == nil {
		return errors.New("cannot cache nil user")
	}

	data, err := json.Marshal(entry{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", user.ID, err)
	}

	if err := c.client.Set(ctx, cacheKey(user.ID), data, c.ttl).Err(); err != nil {
		c.log.Error("failed to set cache", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("cache set %s: %w", user.ID, err)
	}

	c.log.Debug("cached user", zap.String("user_id", user.ID), zap.Duration("ttl", c.ttl))
	return nil
}

// Delete removes users from Redis.
func (c *RedisUserCache) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Error("failed to delete from cache", zap.Int("count", len(ids)), zap.Error(err))
		return fmt.Errorf("cache delete: %w", err)
	}

	c.log.Debug("deleted from cache", zap.Int("count", len(ids)))
	return nil
}
