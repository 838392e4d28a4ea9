// Package middleware Bot 中间件
package middleware

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/channelpass/channelpass/pkg/logger"
)

// Authorizer 权限判断，由管理员服务实现
type Authorizer interface {
	IsAdmin(userID int64) bool
	IsOwner(userID int64) bool
}

// reply 回调用弹窗提示，其他更新直接回复
func reply(c tele.Context, text string) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
	}
	return c.Send(text)
}

// commandOf 只取命令名，普通文本里可能含有订阅码
func commandOf(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	if i := strings.IndexAny(text, " \n"); i > 0 {
		return text[:i]
	}
	return text
}

// Logger 日志中间件，记录处理耗时和处理器返回的错误
func Logger() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			err := next(c)

			user := c.Sender()
			if user == nil {
				return err
			}

			ev := logger.Debug()
			if err != nil {
				ev = logger.Warn().Err(err)
			}
			ev = ev.Int64("user_id", user.ID).
				Str("username", user.Username).
				Dur("elapsed", time.Since(start))

			if cb := c.Callback(); cb != nil {
				ev.Str("callback", strings.TrimPrefix(cb.Data, "\f")).Msg("处理回调")
			} else {
				ev.Str("command", commandOf(c.Text())).Int("len", len(c.Text())).Msg("处理消息")
			}
			return err
		}
	}
}

// Recover 恢复中间件
func Recover() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Interface("panic", r).
						Str("stack", string(debug.Stack())).
						Msg("处理器 panic")

					err = reply(c, "❌ 处理请求时发生错误，请稍后重试")
				}
			}()
			return next(c)
		}
	}
}

// require 权限检查的公共部分
func require(allowed func(userID int64) bool, deny string) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return reply(c, "❌ 无法获取用户信息")
			}
			if !allowed(user.ID) {
				logger.Debug().Int64("user_id", user.ID).Str("command", commandOf(c.Text())).Msg("权限不足")
				return reply(c, deny)
			}
			return next(c)
		}
	}
}

// AdminOnly 管理员权限中间件
func AdminOnly(auth Authorizer) tele.MiddlewareFunc {
	return require(auth.IsAdmin, "❌ 您没有权限执行此操作")
}

// OwnerOnly Owner 权限中间件
func OwnerOnly(auth Authorizer) tele.MiddlewareFunc {
	return require(auth.IsOwner, "❌ 此命令仅限 Owner 使用")
}

// PrivateOnly 私聊中间件，兑换和试用只在私聊中进行
func PrivateOnly() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil || chat.Type != tele.ChatPrivate {
				return reply(c, "🔒 请私聊机器人使用此命令，邀请链接只会私下发送")
			}
			return next(c)
		}
	}
}

// window 单个用户的计数窗口
type window struct {
	count   int
	resetAt time.Time
}

// rateLimiter 固定窗口限流，按用户计数
type rateLimiter struct {
	mu        sync.Mutex
	entries   map[int64]*window
	limit     int
	period    time.Duration
	lastClean time.Time
	now       func() time.Time
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	return &rateLimiter{
		entries:   make(map[int64]*window),
		limit:     requestsPerMinute,
		period:    time.Minute,
		lastClean: time.Now(),
		now:       time.Now,
	}
}

// allow 是否放行；拒绝时返回距离窗口重置的时间
func (rl *rateLimiter) allow(userID int64) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastClean) > 5*rl.period {
		for id, w := range rl.entries {
			if now.After(w.resetAt) {
				delete(rl.entries, id)
			}
		}
		rl.lastClean = now
	}

	w, ok := rl.entries[userID]
	if !ok || now.After(w.resetAt) {
		rl.entries[userID] = &window{count: 1, resetAt: now.Add(rl.period)}
		return true, 0
	}
	if w.count >= rl.limit {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}

// RateLimit 速率限制中间件，管理员不受限制
func RateLimit(auth Authorizer, requestsPerMinute int) tele.MiddlewareFunc {
	limiter := newRateLimiter(requestsPerMinute)

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || (auth != nil && auth.IsAdmin(user.ID)) {
				return next(c)
			}

			ok, wait := limiter.allow(user.ID)
			if !ok {
				logger.Warn().
					Int64("user_id", user.ID).
					Int("limit", requestsPerMinute).
					Dur("retry_in", wait).
					Msg("用户触发速率限制")

				return reply(c, fmt.Sprintf("⏳ 操作太频繁，请 %d 秒后再试", int(wait.Seconds())+1))
			}
			return next(c)
		}
	}
}
