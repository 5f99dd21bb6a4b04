package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/coaching-core-api/pkg/config"
)

const (
	defaultDialTimeout = 5 * time.Second
	commandTimeout     = 2 * time.Second
)

// NewRedis connects to Redis and verifies the connection. Workflow sessions
// and the coach directory cache share this client under separate key prefixes,
// so a failed ping is fatal for the caller.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(Options(cfg))

	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), dial)
	defer cancel()

	if err := Ping(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Options maps the Redis config onto client options.
func Options(cfg config.RedisConfig) *redis.Options {
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dial,
		ReadTimeout:  commandTimeout,
		WriteTimeout: commandTimeout,
	}
}

// Ping reports whether the server answers. Used at startup and by the
// readiness probe.
func Ping(ctx context.Context, client redis.UniversalClient) error {
	if client == nil {
		return fmt.Errorf("redis client not configured")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}
