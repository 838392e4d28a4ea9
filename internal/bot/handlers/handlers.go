// Package handlers Bot 命令处理器
package handlers

import (
	"context"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/service"
	"github.com/channelpass/channelpass/pkg/logger"
)

// TaskRunner 手动触发定时任务
type TaskRunner interface {
	RunNow(ctx context.Context, task string) (*service.SweepResult, error)
}

// Services 处理器依赖的服务
type Services struct {
	Config    *config.Config
	Lifecycle *service.LifecycleService
	Codes     *service.CodeService
	Admins    *service.AdminService
	Channels  *service.ChannelService
	Buttons   *service.ButtonService
	Stats     *service.StatsService
	Backup    *service.BackupService
	Tasks     TaskRunner
}

var svc *Services

// Init 注入服务，必须在注册处理器之前调用
func Init(s *Services) {
	svc = s
}

// 用户操作的超时时间，覆盖多个频道的邀请链接创建
const userOpTimeout = 2 * time.Minute

func userContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), userOpTimeout)
}

// editOrReply 编辑消息或发送新消息
// 当消息是图片/文件消息时，使用 EditCaption；否则使用 Edit
func editOrReply(c tele.Context, text string, opts ...interface{}) error {
	msg := c.Message()
	if msg == nil {
		return c.Send(text, opts...)
	}

	if msg.Photo != nil || msg.Document != nil {
		if _, err := c.Bot().EditCaption(msg, text, opts...); err != nil {
			logger.Debug().Err(err).Msg("EditCaption failed, sending new message")
			return c.Send(text, opts...)
		}
		return nil
	}

	if err := c.Edit(text, opts...); err != nil {
		logger.Debug().Err(err).Msg("Edit failed, sending new message")
		return c.Send(text, opts...)
	}
	return nil
}

// isAdmin 当前用户是否是管理员
func isAdmin(c tele.Context) bool {
	return c.Sender() != nil && svc.Admins.IsAdmin(c.Sender().ID)
}

// denyCallback 回调权限不足
func denyCallback(c tele.Context) error {
	return c.Respond(&tele.CallbackResponse{Text: "❌ 您没有权限", ShowAlert: true})
}
