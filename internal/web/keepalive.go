package web

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/channelpass/channelpass/internal/config"
	pkglogger "github.com/channelpass/channelpass/pkg/logger"
)

// KeepAlive 定时请求自身地址，防止免费托管平台休眠
type KeepAlive struct {
	client   *resty.Client
	url      string
	interval time.Duration
}

// NewKeepAlive 创建保活任务
func NewKeepAlive(cfg *config.KeepAliveConfig) *KeepAlive {
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetHeader("User-Agent", "ChannelPass/1.0 KeepAlive")

	return &KeepAlive{
		client:   client,
		url:      cfg.URL,
		interval: time.Duration(cfg.IntervalMinutes) * time.Minute,
	}
}

// Ping 请求一次
func (k *KeepAlive) Ping(ctx context.Context) error {
	resp, err := k.client.R().SetContext(ctx).Get(k.url)
	if err != nil {
		return fmt.Errorf("保活请求失败: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("保活请求返回 %d", resp.StatusCode())
	}
	return nil
}

// Run 按间隔请求直到 ctx 取消
func (k *KeepAlive) Run(ctx context.Context) {
	if k.url == "" || k.interval <= 0 {
		return
	}
	pkglogger.Info().Str("url", k.url).Dur("interval", k.interval).Msg("保活任务已启动")

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := k.Ping(ctx); err != nil {
				pkglogger.Warn().Err(err).Msg("保活失败")
				continue
			}
			pkglogger.Debug().Msg("保活成功")
		}
	}
}
