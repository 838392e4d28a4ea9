package lock

import (
	"context"
	"time"

	"github.com/channelpass/channelpass/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// RedisLocker 基于 SET NX 的分布式锁，多实例部署时共享
type RedisLocker struct {
	cli        *redis.Client
	ttl        time.Duration
	attempts   int
	retryDelay time.Duration
	newToken   func() string
}

// NewRedisLocker 创建 Redis 锁
func NewRedisLocker(cli *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		cli:        cli,
		ttl:        ttl,
		attempts:   50,
		retryDelay: 100 * time.Millisecond,
		newToken:   uuid.NewString,
	}
}

// TryLock 尝试获取锁，成功时返回持有者 token
func (l *RedisLocker) TryLock(ctx context.Context, key string) (string, error) {
	token := l.newToken()
	for i := 0; i < l.attempts; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			logger.Debug().Err(err).Str("key", key).Int("attempt", i+1).Msg("获取 Redis 锁失败")
		} else if ok {
			return token, nil
		}

		if i == l.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
	return "", ErrLockBusy
}

// Unlock 仅当 token 匹配时释放
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	return unlockScript.Run(ctx, l.cli, []string{key}, token).Err()
}

// Lock 实现 Locker
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token, err := l.TryLock(ctx, key)
	if err != nil {
		return nil, err
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := l.Unlock(ctx, key, token); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("释放 Redis 锁失败")
		}
	}, nil
}
