package handlers

import (
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/channelpass/channelpass/internal/bot/session"
	"github.com/channelpass/channelpass/internal/service"
	"github.com/channelpass/channelpass/pkg/logger"
)

// OnText 文本消息处理器：会话状态、自定义命令、消息中的订阅码
func OnText(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	text := strings.TrimSpace(c.Text())

	if strings.HasPrefix(text, "/") {
		return handleDynamicCommand(c, text)
	}

	private := c.Chat() != nil && c.Chat().Type == tele.ChatPrivate
	if !private {
		return nil
	}

	switch state := session.GetManager().GetState(user.ID); state {
	case session.StateWaitingCode:
		code, ok := service.FindCodeInText(strings.ToUpper(text))
		if !ok {
			return c.Send("❌ 未识别到有效的 12 位订阅码，请重新发送，或发送 /cancel 取消")
		}
		return redeem(c, code)
	case session.StateButtonText, session.StateButtonCommand, session.StateButtonResponse:
		if !isAdmin(c) {
			session.GetManager().ClearSession(user.ID)
			return nil
		}
		return handleButtonWizard(c, state)
	}

	code, ok, err := svc.Codes.DetectCode(text)
	if err != nil {
		logger.Warn().Err(err).Int64("user_id", user.ID).Msg("识别消息中的订阅码失败")
		return c.Send("❌ 系统繁忙，请稍后重试")
	}
	if ok {
		return redeem(c, code)
	}
	return c.Send(noCodeHint)
}

// noCodeHint 私聊中既不是命令也没有可用订阅码时的提示
const noCodeHint = "💡 直接发送 12 位订阅码即可兑换，或发送 /start 查看菜单"

// handleDynamicCommand 自定义按钮对应的命令
func handleDynamicCommand(c tele.Context, text string) error {
	name := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}

	if b, ok := svc.Buttons.Lookup(strings.ToLower(name)); ok {
		return c.Send(b.ButtonResponse)
	}
	if c.Chat() != nil && c.Chat().Type == tele.ChatPrivate {
		return c.Send("❓ 未知命令，发送 /help 查看可用命令")
	}
	return nil
}
