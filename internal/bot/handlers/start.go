package handlers

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/channelpass/channelpass/internal/bot/keyboards"
	"github.com/channelpass/channelpass/internal/database/models"
	"github.com/channelpass/channelpass/internal/service"
	"github.com/channelpass/channelpass/pkg/logger"
)

// Start /start 命令处理器，参数为订阅码时直接兑换
func Start(c tele.Context) error {
	if args := c.Args(); len(args) > 0 {
		if code, ok := service.FindCodeInText(strings.ToUpper(args[0])); ok {
			return redeem(c, code)
		}
	}
	text, keyboard := startPanel(c)
	return c.Send(text, keyboard)
}

// startPanel 欢迎消息和主菜单
func startPanel(c tele.Context) (string, *tele.ReplyMarkup) {
	user := c.Sender()

	buttons, err := svc.Buttons.Active()
	if err != nil {
		logger.Warn().Err(err).Msg("读取自定义按钮失败")
	}

	main := svc.Channels.Main()
	text := fmt.Sprintf(
		"👋 你好 %s，欢迎使用 %s\n\n"+
			"🎫 使用订阅码开通付费频道访问\n"+
			"🆓 新用户可免费试用 %d 天\n\n"+
			"请选择功能 👇",
		displayName(user), svc.Config.BotName, svc.Config.Lifecycle.TrialDays,
	)
	return text, keyboards.StartPanelKeyboard(isAdmin(c), main.PublicURL(), buttons)
}

// Help /help 命令处理器
func Help(c tele.Context) error {
	var sb strings.Builder
	sb.WriteString("📖 使用帮助\n\n")
	sb.WriteString("/use <订阅码> - 兑换订阅码\n")
	sb.WriteString("/trial - 开通免费试用\n")
	sb.WriteString("/mysubscription - 查看我的订阅\n")
	sb.WriteString("/channels - 查看频道列表\n")
	sb.WriteString("/mainchannel - 主频道地址\n\n")
	sb.WriteString("💡 直接发送 12 位订阅码也可以完成兑换。\n")

	if buttons, err := svc.Buttons.Active(); err == nil && len(buttons) > 0 {
		sb.WriteString("\n📌 更多:\n")
		for _, b := range buttons {
			sb.WriteString(fmt.Sprintf("/%s - %s\n", b.ButtonCommand, b.ButtonText))
		}
	}

	if isAdmin(c) {
		sb.WriteString("\n⚙️ 管理员请使用 /admin 查看管理命令")
	}
	return c.Send(sb.String(), keyboards.CloseKeyboard())
}

// MainChannel /mainchannel 命令处理器
func MainChannel(c tele.Context) error {
	main := svc.Channels.Main()
	url := main.PublicURL()
	if url == "" {
		return c.Send("📣 主频道: " + main.DisplayName())
	}

	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.URL("📣 加入主频道", url)))
	return c.Send(fmt.Sprintf("📣 主频道: %s\n%s", main.DisplayName(), url), markup)
}

// Channels /channels 命令处理器
func Channels(c tele.Context) error {
	channels, err := svc.Channels.Active()
	if err != nil {
		logger.Error().Err(err).Msg("读取频道列表失败")
		return c.Send("❌ 系统错误，请稍后重试")
	}
	return c.Send(formatChannels(channels), keyboards.CloseKeyboard())
}

func formatChannels(channels []models.Channel) string {
	if len(channels) == 0 {
		return "📢 暂无频道"
	}
	var sb strings.Builder
	sb.WriteString("📢 频道列表\n\n")
	for _, ch := range channels {
		tag := "💎"
		if ch.IsMainChannel {
			tag = "📣"
		}
		sb.WriteString(fmt.Sprintf("%s %s", tag, ch.DisplayName()))
		if ch.ChannelUsername != "" {
			sb.WriteString(" " + ch.ChannelUsername)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n📣 主频道对所有人开放，💎 付费频道需要有效订阅。")
	return sb.String()
}

// MySubscription /mysubscription 命令处理器
func MySubscription(c tele.Context) error {
	text, links := subscriptionText(c.Sender().ID)
	if len(links) > 0 {
		return c.Send(text, keyboards.InviteLinksKeyboard(links))
	}
	return c.Send(text)
}

// subscriptionText 订阅详情，只在订阅有效时返回邀请链接
func subscriptionText(userID int64) (string, []models.InviteLink) {
	sub, err := svc.Lifecycle.GetSubscription(userID)
	if err != nil {
		if errors.Is(err, service.ErrSubscriberNotFound) {
			return "📭 您还没有订阅\n\n使用 /use <订阅码> 开通，或 /trial 免费试用。", nil
		}
		logger.Error().Err(err).Int64("user_id", userID).Msg("读取订阅失败")
		return "❌ 系统错误，请稍后重试", nil
	}

	now := svc.Lifecycle.Now()
	loc := svc.Config.Location()

	kind := "付费订阅"
	if sub.IsTrial {
		kind = "免费试用"
	}
	status := "✅ 有效"
	if !sub.HasActiveSubscription(now) {
		status = "❌ 已失效"
	}

	text := fmt.Sprintf(
		"📋 我的订阅\n\n"+
			"· 类型 | %s\n"+
			"· 状态 | %s\n"+
			"· 开通时间 | %s\n"+
			"· 到期时间 | %s\n",
		kind, status,
		sub.SubscribedAt.In(loc).Format("2006-01-02 15:04"),
		sub.ExpiresAt.In(loc).Format("2006-01-02 15:04"),
	)
	if !sub.HasActiveSubscription(now) {
		return text + "\n使用 /use <订阅码> 续期。", nil
	}
	text += fmt.Sprintf("· 剩余天数 | %d\n", sub.DaysLeft(now))
	return text, sub.InviteLinks
}

func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}
