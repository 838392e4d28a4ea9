package handlers

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/channelpass/channelpass/internal/bot/keyboards"
	"github.com/channelpass/channelpass/internal/bot/session"
	"github.com/channelpass/channelpass/internal/service"
	"github.com/channelpass/channelpass/pkg/logger"
)

// parseCallback 解析回调数据
// telebot v3 的 Data() 生成的回调格式是 "\f{unique}|{data}"
func parseCallback(raw string) (string, []string) {
	data := strings.TrimPrefix(raw, "\f")

	var parts []string
	if strings.Contains(data, "|") {
		parts = strings.Split(data, "|")
	} else if strings.Contains(data, ":") {
		parts = strings.Split(data, ":")
	} else {
		parts = []string{data}
	}
	return parts[0], parts
}

// OnCallback 回调查询处理器
func OnCallback(c tele.Context) error {
	action, parts := parseCallback(c.Callback().Data)

	logger.Debug().Str("raw_data", c.Callback().Data).Str("action", action).Msg("收到回调")

	switch action {
	case "noop":
		return c.Respond()
	case "close":
		_ = c.Respond()
		return c.Delete()
	case "back_start":
		_ = c.Respond(&tele.CallbackResponse{Text: "⭐ 返回"})
		text, keyboard := startPanel(c)
		return editOrReply(c, text, keyboard)
	case "use_code":
		session.GetManager().SetState(c.Sender().ID, session.StateWaitingCode)
		_ = c.Respond()
		return editOrReply(c, "🎫 请发送您的 12 位订阅码\n\n发送 /cancel 取消操作", keyboards.BackKeyboard("back_start"))
	case "trial":
		_ = c.Respond(&tele.CallbackResponse{Text: "⏳ 正在开通试用..."})
		return Trial(c)
	case "my_sub":
		_ = c.Respond()
		text, links := subscriptionText(c.Sender().ID)
		if len(links) > 0 {
			return c.Send(text, keyboards.InviteLinksKeyboard(links))
		}
		return editOrReply(c, text, keyboards.BackKeyboard("back_start"))
	case "channels":
		_ = c.Respond()
		return Channels(c)
	case "btn":
		if len(parts) < 2 {
			return c.Respond()
		}
		b, ok := svc.Buttons.Lookup(parts[1])
		if !ok {
			return c.Respond(&tele.CallbackResponse{Text: "❌ 按钮已失效", ShowAlert: true})
		}
		_ = c.Respond()
		return c.Send(b.ButtonResponse)
	}

	if !isAdmin(c) {
		return denyCallback(c)
	}
	return onAdminCallback(c, action, parts)
}

// onAdminCallback 管理面板回调
func onAdminCallback(c tele.Context, action string, parts []string) error {
	switch action {
	case "admin_panel":
		_ = c.Respond()
		return editOrReply(c, "⚙️ 管理面板\n\n请选择操作:", keyboards.AdminPanelKeyboard(svc.Admins.IsOwner(c.Sender().ID)))
	case "admin_subs", keyboards.ActionSubsPage:
		_ = c.Respond()
		text, markup := subscribersPage(pageArg(parts))
		return editOrReply(c, text, markup)
	case "admin_codes", keyboards.ActionCodesPage:
		_ = c.Respond()
		text, markup := codesPage(pageArg(parts))
		return editOrReply(c, text, markup, tele.ModeMarkdown)
	case "admin_stats":
		_ = c.Respond(&tele.CallbackResponse{Text: "📊 统计信息"})
		return Stats(c)
	case "admin_channels":
		_ = c.Respond()
		text, markup := channelsPanel()
		return editOrReply(c, text, markup)
	case "ch_toggle":
		if len(parts) < 2 {
			return c.Respond()
		}
		_ = c.Respond(&tele.CallbackResponse{Text: toggleChannelText(parts[1])})
		text, markup := channelsPanel()
		return editOrReply(c, text, markup)
	case "admin_check_ex":
		_ = c.Respond(&tele.CallbackResponse{Text: "🔍 正在执行到期检测..."})
		return runSweep(c, service.SweepExpiry, "过期检查")
	case "admin_check_trials":
		_ = c.Respond(&tele.CallbackResponse{Text: "🧪 正在执行试用检测..."})
		return runSweep(c, service.SweepTrial, "试用检查")
	case "admin_notify":
		_ = c.Respond(&tele.CallbackResponse{Text: "📨 正在发送到期提醒..."})
		return runSweep(c, service.SweepNotifications, "到期提醒")
	case "admin_buttons":
		_ = c.Respond()
		return editOrReply(c, buttonsText(), keyboards.BackKeyboard("admin_panel"))
	}

	if !svc.Admins.IsOwner(c.Sender().ID) {
		return denyCallback(c)
	}

	switch action {
	case "owner_admins":
		_ = c.Respond()
		return editOrReply(c, adminsText(), keyboards.BackKeyboard("admin_panel"))
	case "owner_backup":
		_ = c.Respond(&tele.CallbackResponse{Text: "💾 正在备份..."})
		return Backup(c)
	case "owner_rm_admin":
		if len(parts) < 2 {
			return c.Respond()
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return c.Respond()
		}
		_ = c.Respond()
		return confirmRemoveAdmin(c, id)
	}

	logger.Debug().Str("action", action).Msg("未知回调")
	return c.Respond()
}

func pageArg(parts []string) int {
	if len(parts) < 2 {
		return 1
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil || page < 1 {
		return 1
	}
	return page
}
