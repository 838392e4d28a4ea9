// Package keyboards 键盘按钮
package keyboards

import (
	tele "gopkg.in/telebot.v3"

	"github.com/channelpass/channelpass/internal/database/models"
)

// 每行最多放置的动态按钮数
const buttonsPerRow = 2

// StartPanelKeyboard 开始面板键盘
func StartPanelKeyboard(isAdmin bool, mainURL string, buttons []models.DynamicButton) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var rows []tele.Row

	rows = append(rows, markup.Row(
		markup.Data("🎫 使用订阅码", "use_code"),
		markup.Data("🆓 免费试用", "trial"),
	))

	rows = append(rows, markup.Row(
		markup.Data("📋 我的订阅", "my_sub"),
		markup.Data("📢 频道列表", "channels"),
	))

	if mainURL != "" {
		rows = append(rows, markup.Row(markup.URL("📣 加入主频道", mainURL)))
	}

	rows = append(rows, DynamicButtonRows(markup, buttons)...)

	if isAdmin {
		rows = append(rows, markup.Row(
			markup.Data("⚙️ 管理面板", "admin_panel"),
		))
	}

	markup.Inline(rows...)
	return markup
}

// DynamicButtonRows 管理员自定义按钮，点击后回复对应内容
func DynamicButtonRows(markup *tele.ReplyMarkup, buttons []models.DynamicButton) []tele.Row {
	var (
		rows []tele.Row
		row  []tele.Btn
	)
	for _, b := range buttons {
		row = append(row, markup.Data(b.ButtonText, "btn|"+b.ButtonCommand))
		if len(row) == buttonsPerRow {
			rows = append(rows, markup.Row(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, markup.Row(row...))
	}
	return rows
}

// AdminPanelKeyboard 管理面板键盘
func AdminPanelKeyboard(isOwner bool) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var rows []tele.Row

	rows = append(rows, markup.Row(
		markup.Data("👥 订阅者", "admin_subs"),
		markup.Data("🎫 可用订阅码", "admin_codes"),
	))

	rows = append(rows, markup.Row(
		markup.Data("📊 统计信息", "admin_stats"),
		markup.Data("📢 频道管理", "admin_channels"),
	))

	rows = append(rows, markup.Row(
		markup.Data("🔍 到期检测", "admin_check_ex"),
		markup.Data("🧪 试用检测", "admin_check_trials"),
	))

	rows = append(rows, markup.Row(
		markup.Data("📨 到期提醒", "admin_notify"),
		markup.Data("🔘 按钮管理", "admin_buttons"),
	))

	if isOwner {
		rows = append(rows, markup.Row(
			markup.Data("👮 管理员列表", "owner_admins"),
			markup.Data("💾 备份数据库", "owner_backup"),
		))
	}

	rows = append(rows, markup.Row(
		markup.Data("« 返回", "back_start"),
	))

	markup.Inline(rows...)
	return markup
}

// InviteLinksKeyboard 每个频道一个加入按钮
func InviteLinksKeyboard(links []models.InviteLink) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var rows []tele.Row
	for _, l := range links {
		if l.InviteLink == "" {
			continue
		}
		name := l.ChannelName
		if name == "" {
			name = l.ChannelID
		}
		rows = append(rows, markup.Row(markup.URL("🔗 "+name, l.InviteLink)))
	}

	markup.Inline(rows...)
	return markup
}

// ChannelToggleKeyboard 频道启用/停用按钮，主频道不可操作
func ChannelToggleKeyboard(channels []models.Channel) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var rows []tele.Row
	for _, ch := range channels {
		if ch.IsMainChannel {
			continue
		}
		icon := "🟢"
		if !ch.IsActive {
			icon = "🔴"
		}
		rows = append(rows, markup.Row(
			markup.Data(icon+" "+ch.DisplayName(), "ch_toggle|"+ch.ChannelID),
		))
	}
	rows = append(rows, markup.Row(markup.Data("« 返回", "admin_panel")))

	markup.Inline(rows...)
	return markup
}

// ConfirmKeyboard 确认操作键盘
func ConfirmKeyboard(confirmData, cancelData string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	markup.Inline(
		markup.Row(
			markup.Data("✅ 确认", confirmData),
			markup.Data("❌ 取消", cancelData),
		),
	)
	return markup
}

// BackKeyboard 返回键盘
func BackKeyboard(backData string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	markup.Inline(
		markup.Row(markup.Data("« 返回", backData)),
	)
	return markup
}

// CloseKeyboard 关闭键盘
func CloseKeyboard() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	markup.Inline(
		markup.Row(markup.Data("❌ 关闭", "close")),
	)
	return markup
}
