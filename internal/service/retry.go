package service

import (
	"context"
	"time"

	"github.com/channelpass/channelpass/pkg/logger"
)

// RetryPolicy 重试策略，延迟按 2 的幂次增长
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

// Retry 执行 fn，失败后按指数退避重试，耗尽后返回最后一次的错误
func Retry(ctx context.Context, p RetryPolicy, op string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		delay := p.BaseDelay * time.Duration(1<<i)
		logger.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", i+1).
			Dur("retry_in", delay).
			Msg("操作失败，准备重试")

		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}

	logger.Error().Err(err).Str("op", op).Int("attempts", attempts).Msg("重试次数已用尽")
	return err
}

// sleepCtx 可被取消的等待
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
