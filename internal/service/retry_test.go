package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetry(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}

	t.Run("最终成功", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, "test", func(context.Context) error {
			calls++
			if calls < 3 {
				return errAPIDown
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("耗尽后返回最后的错误", func(t *testing.T) {
		calls := 0
		last := errors.New("last")
		err := Retry(context.Background(), policy, "test", func(context.Context) error {
			calls++
			if calls == 3 {
				return last
			}
			return errAPIDown
		})
		assert.ErrorIs(t, err, last)
		assert.Equal(t, 3, calls)
	})

	t.Run("取消时停止等待", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := Retry(ctx, RetryPolicy{Attempts: 5, BaseDelay: time.Hour}, "test", func(context.Context) error {
			calls++
			cancel()
			return errAPIDown
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("次数至少为 1", func(t *testing.T) {
		calls := 0
		_ = Retry(context.Background(), RetryPolicy{}, "test", func(context.Context) error {
			calls++
			return errAPIDown
		})
		assert.Equal(t, 1, calls)
	})
}

func TestSweepResultFormat(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	r := &SweepResult{
		Sweep:      SweepExpiry,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Checked:    3,
		Items: []ItemResult{
			{UserID: 1, Outcome: OutcomeProcessed, Notified: true},
			{UserID: 2, Outcome: OutcomeFailed, Err: ErrChannelAPI},
			{UserID: 3, Outcome: OutcomeSkipped},
		},
	}
	out := r.FormatResult("过期检查")
	assert.Contains(t, out, "过期检查完成")
	assert.Contains(t, out, "🔍 检查: 3")
	assert.Contains(t, out, "✅ 成功: 1")
	assert.Contains(t, out, "⏭️ 跳过: 1")
	assert.Contains(t, out, "❌ 失败: 1")
	assert.Contains(t, out, "📨 已通知: 1")
	assert.Contains(t, out, "1.5s")
}
