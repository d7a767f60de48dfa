package auth

import (
	"context"
	"fmt"
	"time"

	"careplus/internal/logger"

	"github.com/go-redis/redis/v8"
)

const roleCachePrefix = "user_role:"

// CachedRoleResolver keeps role lookups in Redis for a short TTL. Any Redis
// failure falls through to the wrapped resolver.
type CachedRoleResolver struct {
	Next   RoleResolver
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewCachedRoleResolver(next RoleResolver, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedRoleResolver {
	return &CachedRoleResolver{Next: next, Client: client, TTL: ttl, Logger: log}
}

func (c *CachedRoleResolver) RoleForEmail(ctx context.Context, email string) (string, error) {
	key := roleCachePrefix + email

	role, err := c.Client.Get(ctx, key).Result()
	if err == nil {
		return role, nil
	}
	if err != redis.Nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("Role cache read failed: %v", err))
	}

	role, err = c.Next.RoleForEmail(ctx, email)
	if err != nil {
		return "", err
	}

	if err := c.Client.Set(ctx, key, role, c.TTL).Err(); err != nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("Role cache write failed: %v", err))
	}
	return role, nil
}

// Invalidate drops the cached role after it changes.
func (c *CachedRoleResolver) Invalidate(ctx context.Context, email string) error {
	return c.Client.Del(ctx, roleCachePrefix+email).Err()
}

// InitializeRedis connects to Redis and checks the connection.
func InitializeRedis(redisAddr string, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: "",
		DB:       0,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error("REDIS", fmt.Sprintf("Failed to connect to Redis at %s: %v", redisAddr, err))
		client.Close()
		return nil, err
	}

	log.Info("REDIS", fmt.Sprintf("Connected to Redis at %s", redisAddr))
	return client, nil
}
