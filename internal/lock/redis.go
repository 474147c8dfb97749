// Package lock provides an account lock shared between processes through
// Redis, for deployments where more than one ammswap instance signs for the
// same address.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL   = 3 * time.Minute
	DefaultRetry = 100 * time.Millisecond
	keyPrefix    = "ammswap:lock:"
)

// Release only deletes the key when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client is the subset of *redis.Client the lock uses.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

type Config struct {
	TTL   time.Duration
	Retry time.Duration
}

type RedisLock struct {
	client Client
	cfg    Config
	logger *slog.Logger
}

func NewRedisLock(client Client, cfg Config, logger *slog.Logger) *RedisLock {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Retry <= 0 {
		cfg.Retry = DefaultRetry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLock{client: client, cfg: cfg, logger: logger}
}

func Key(addr common.Address) string {
	return keyPrefix + strings.ToLower(addr.Hex())
}

// Lock blocks until the account key is acquired or ctx ends. The TTL bounds
// how long a crashed holder can block other processes.
func (l *RedisLock) Lock(ctx context.Context, addr common.Address) (func(), error) {
	key := Key(addr)
	token := uuid.NewString()
	ticker := time.NewTicker(l.cfg.Retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(key, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLock) releaser(key, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("redis unlock failed", "key", key, "error", err)
			return
		}
		if n == 0 {
			l.logger.Warn("redis lock expired before release", "key", key)
		}
	}
}
