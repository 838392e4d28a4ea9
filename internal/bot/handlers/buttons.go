package handlers

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/channelpass/channelpass/internal/bot/keyboards"
	"github.com/channelpass/channelpass/internal/bot/session"
	"github.com/channelpass/channelpass/internal/service"
)

// ButtonsList /buttons 命令处理器
func ButtonsList(c tele.Context) error {
	return c.Send(buttonsText(), keyboards.CloseKeyboard())
}

func buttonsText() string {
	buttons, err := svc.Buttons.List()
	if err != nil {
		return adminError("读取按钮失败", err)
	}
	if len(buttons) == 0 {
		return "🔘 暂无自定义按钮\n\n使用 /addbutton 添加"
	}
	var sb strings.Builder
	sb.WriteString("🔘 自定义按钮\n\n")
	for _, b := range buttons {
		icon := "🟢"
		if !b.IsActive {
			icon = "🔴"
		}
		sb.WriteString(fmt.Sprintf("%s %s → /%s\n", icon, b.ButtonText, b.ButtonCommand))
	}
	return sb.String()
}

// AddButton /addbutton 命令处理器，依次输入按钮文字、命令和回复内容
func AddButton(c tele.Context) error {
	mgr := session.GetManager()
	mgr.ClearSession(c.Sender().ID)
	mgr.SetState(c.Sender().ID, session.StateButtonText)
	return c.Send("🔘 添加按钮 (1/3)\n\n请发送按钮上显示的文字\n\n发送 /cancel 取消")
}

// handleButtonWizard 添加按钮向导的文本输入
func handleButtonWizard(c tele.Context, state session.State) error {
	mgr := session.GetManager()
	userID := c.Sender().ID
	text := strings.TrimSpace(c.Text())
	if text == "" {
		return c.Send("❌ 内容不能为空，请重新发送")
	}

	switch state {
	case session.StateButtonText:
		if !mgr.Advance(userID, session.StateButtonCommand, func(d *session.ButtonDraft) { d.Text = text }) {
			return c.Send("⌛ 操作已超时，请重新发送 /addbutton")
		}
		return c.Send("🔘 添加按钮 (2/3)\n\n请发送命令名称（小写字母、数字、下划线），例如 faq")

	case session.StateButtonCommand:
		cmd, err := service.NormalizeCommand(text)
		if err != nil {
			return c.Send(adminError("命令无效", err) + "\n请重新发送")
		}
		if _, err := svc.Buttons.Get(cmd); err == nil {
			return c.Send("❌ 命令已存在，请换一个")
		}
		if !mgr.Advance(userID, session.StateButtonResponse, func(d *session.ButtonDraft) { d.Command = cmd }) {
			return c.Send("⌛ 操作已超时，请重新发送 /addbutton")
		}
		return c.Send("🔘 添加按钮 (3/3)\n\n请发送点击按钮后的回复内容")

	case session.StateButtonResponse:
		draft, ok := mgr.TakeDraft(userID)
		if !ok {
			return c.Send("⌛ 操作已超时，请重新发送 /addbutton")
		}

		b, err := svc.Buttons.Create(draft.Text, draft.Command, text, userID)
		if err != nil {
			return c.Send(adminError("添加按钮失败", err))
		}
		return c.Send(fmt.Sprintf("✅ 按钮已添加\n\n%s → /%s", b.ButtonText, b.ButtonCommand))
	}
	return nil
}

// DeleteButton /deletebutton <命令>
func DeleteButton(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return c.Send("❌ 用法: /deletebutton <命令>")
	}
	if err := svc.Buttons.Delete(args[0]); err != nil {
		return c.Send(adminError("删除按钮失败", err))
	}
	return c.Send("✅ 按钮已删除")
}

// EditButton /editbutton <命令> <新文字>|<新回复>，任一部分留空表示不修改
func EditButton(c tele.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return c.Send("❌ 用法: /editbutton <命令> <新文字>|<新回复>\n例如: /editbutton faq |新的回复内容")
	}

	payload := strings.TrimSpace(strings.TrimPrefix(c.Message().Payload, args[0]))
	text, response, _ := strings.Cut(payload, "|")

	if err := svc.Buttons.Edit(args[0], strings.TrimSpace(text), strings.TrimSpace(response)); err != nil {
		return c.Send(adminError("修改按钮失败", err))
	}
	return c.Send("✅ 按钮已更新")
}

// ToggleButton /togglebutton <命令>
func ToggleButton(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return c.Send("❌ 用法: /togglebutton <命令>")
	}
	active, err := svc.Buttons.Toggle(args[0])
	if err != nil {
		return c.Send(adminError("切换按钮失败", err))
	}
	if active {
		return c.Send("🟢 按钮已启用")
	}
	return c.Send("🔴 按钮已停用")
}

// Cancel /cancel 命令处理器
func Cancel(c tele.Context) error {
	mgr := session.GetManager()
	if mgr.GetState(c.Sender().ID) == session.StateNone {
		return c.Send("ℹ️ 当前没有进行中的操作")
	}
	mgr.ClearSession(c.Sender().ID)
	return c.Send("✅ 已取消")
}
