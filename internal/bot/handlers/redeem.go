package handlers

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/channelpass/channelpass/internal/bot/keyboards"
	"github.com/channelpass/channelpass/internal/bot/session"
	"github.com/channelpass/channelpass/internal/bot/utils"
	"github.com/channelpass/channelpass/internal/service"
)

// Use /use <订阅码> 命令处理器，不带参数时进入等待输入状态
func Use(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		session.GetManager().SetState(c.Sender().ID, session.StateWaitingCode)
		return c.Send("🎫 请发送您的 12 位订阅码\n\n发送 /cancel 取消操作")
	}
	return redeem(c, args[0])
}

// Trial /trial 命令处理器
func Trial(c tele.Context) error {
	ctx, cancel := userContext()
	defer cancel()

	done := utils.Progress(c, "⏳ 正在开通试用...")
	result := svc.Lifecycle.ActivateTrial(ctx, utils.UserInfo(c.Sender()))
	done()
	return sendActivation(c, result)
}

// redeem 兑换订阅码，包含订阅码的原消息会被删除
func redeem(c tele.Context, code string) error {
	session.GetManager().ClearSession(c.Sender().ID)
	utils.DeleteOriginalMessage(c)

	ctx, cancel := userContext()
	defer cancel()

	done := utils.Progress(c, "⏳ 正在验证订阅码...")
	result := svc.Lifecycle.Redeem(ctx, utils.UserInfo(c.Sender()), code)
	done()
	return sendActivation(c, result)
}

// sendActivation 发送开通结果和邀请链接按钮
func sendActivation(c tele.Context, result *service.ActivationResult) error {
	if !result.Success {
		return c.Send(result.Message)
	}

	var sb strings.Builder
	sb.WriteString(result.Message)
	sb.WriteString("\n\n")
	if len(result.InviteLinks) == 0 {
		sb.WriteString("⚠️ 暂无可加入的频道，请联系管理员。")
	} else {
		sb.WriteString(fmt.Sprintf("🔗 已为您生成 %d 个频道的邀请链接，每个链接仅可使用一次。", len(result.InviteLinks)))
	}
	if result.LinkFailures > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠️ 有 %d 个频道的邀请链接创建失败，可稍后使用 /mysubscription 查看或联系管理员。", result.LinkFailures))
	}

	return c.Send(sb.String(), keyboards.InviteLinksKeyboard(result.InviteLinks), tele.NoPreview)
}
