package handlers

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/channelpass/channelpass/internal/bot/keyboards"
	"github.com/channelpass/channelpass/internal/service"
	"github.com/channelpass/channelpass/pkg/imggen"
	"github.com/channelpass/channelpass/pkg/logger"
)

const (
	subscribersPageSize = 15
	sweepTimeout        = 30 * time.Minute
)

// Admin /admin 命令处理器
func Admin(c tele.Context) error {
	text := "⚙️ 管理面板\n\n" +
		"🎫 订阅码\n" +
		"/createcode <天数> <价格> [次数] [channels=..] [exclude=..]\n" +
		"/createbatch <数量> <天数> <价格>\n" +
		"/createmultiple <数量> <天数> <价格>\n" +
		"/codes - 可用订阅码\n\n" +
		"👥 用户\n" +
		"/subscribers - 有效订阅者\n" +
		"/stats - 系统统计\n\n" +
		"📢 频道\n" +
		"/addchannel <id> [@用户名] [名称]\n" +
		"/channelslist - 频道列表\n" +
		"/togglechannel <id> - 启用/停用\n\n" +
		"🔍 任务\n" +
		"/checkexpired /checktrials /sendnotifications\n\n" +
		"🔘 按钮\n" +
		"/buttons /addbutton /editbutton /deletebutton /togglebutton\n"
	if svc.Admins.IsOwner(c.Sender().ID) {
		text += "\n👑 Owner\n/addadmin <id> /removeadmin <id> /admins /backup\n"
	}
	return c.Send(text, keyboards.AdminPanelKeyboard(svc.Admins.IsOwner(c.Sender().ID)))
}

// targetUser 从参数或回复的消息中取得目标用户
func targetUser(c tele.Context) (int64, string, bool) {
	if msg := c.Message(); msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		return msg.ReplyTo.Sender.ID, msg.ReplyTo.Sender.Username, true
	}
	args := c.Args()
	if len(args) == 0 {
		return 0, "", false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return id, "", true
}

// AddAdmin /addadmin 命令处理器
func AddAdmin(c tele.Context) error {
	id, username, ok := targetUser(c)
	if !ok {
		return c.Send("❌ 用法: /addadmin <用户ID>，或回复目标用户的消息")
	}
	if err := svc.Admins.Add(id, c.Sender().ID, username); err != nil {
		return c.Send(adminError("添加管理员失败", err))
	}
	return c.Send(fmt.Sprintf("✅ 已添加管理员 %d", id))
}

// RemoveAdmin /removeadmin 命令处理器
func RemoveAdmin(c tele.Context) error {
	id, _, ok := targetUser(c)
	if !ok {
		return c.Send("❌ 用法: /removeadmin <用户ID>")
	}
	if svc.Admins.IsOwner(id) {
		return c.Send(adminError("移除管理员失败", service.ErrOwnerProtected))
	}
	if !svc.Admins.IsAdmin(id) {
		return c.Send(adminError("移除管理员失败", service.ErrAdminNotFound))
	}
	return c.Send(
		fmt.Sprintf("⚠️ 确认移除管理员 %d ?", id),
		keyboards.ConfirmKeyboard(fmt.Sprintf("owner_rm_admin|%d", id), "close"),
	)
}

// confirmRemoveAdmin 确认按钮回调
func confirmRemoveAdmin(c tele.Context, id int64) error {
	if err := svc.Admins.Remove(id, c.Sender().ID); err != nil {
		return editOrReply(c, adminError("移除管理员失败", err), keyboards.CloseKeyboard())
	}
	return editOrReply(c, fmt.Sprintf("✅ 已移除管理员 %d", id), keyboards.BackKeyboard("owner_admins"))
}

// Admins /admins 命令处理器
func Admins(c tele.Context) error {
	return c.Send(adminsText(), keyboards.CloseKeyboard())
}

func adminsText() string {
	admins, err := svc.Admins.List()
	if err != nil {
		return adminError("读取管理员失败", err)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👮 管理员列表\n\n👑 Owner: %d\n", svc.Config.Owner))
	for _, a := range admins {
		if a.UserID == svc.Config.Owner {
			continue
		}
		sb.WriteString(fmt.Sprintf("· %d", a.UserID))
		if a.Username != "" {
			sb.WriteString(" @" + a.Username)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// AddChannel /addchannel <id> [@用户名] [名称...]
func AddChannel(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return c.Send("❌ 用法: /addchannel <频道ID> [@用户名] [名称]\n例如: /addchannel -1001234567890 @premium 高级频道")
	}

	var username string
	rest := args[1:]
	if len(rest) > 0 && strings.HasPrefix(rest[0], "@") {
		username = rest[0]
		rest = rest[1:]
	}

	ch, err := svc.Channels.Add(args[0], username, strings.Join(rest, " "), c.Sender().ID)
	if err != nil {
		return c.Send(adminError("添加频道失败", err))
	}
	return c.Send(fmt.Sprintf(
		"✅ 频道已保存\n\n🆔 %s\n📛 %s\n\n⚠️ 请确认机器人是该频道的管理员，并拥有邀请和封禁成员的权限。",
		ch.ChannelID, ch.DisplayName(),
	))
}

// ChannelsList /channelslist 命令处理器，包含已停用的频道
func ChannelsList(c tele.Context) error {
	text, markup := channelsPanel()
	return c.Send(text, markup)
}

func channelsPanel() (string, *tele.ReplyMarkup) {
	channels, err := svc.Channels.List()
	if err != nil {
		return adminError("读取频道失败", err), keyboards.CloseKeyboard()
	}
	var sb strings.Builder
	sb.WriteString("📢 频道管理\n\n")
	for _, ch := range channels {
		icon := "🟢"
		if !ch.IsActive {
			icon = "🔴"
		}
		if ch.IsMainChannel {
			icon = "📣"
		}
		sb.WriteString(fmt.Sprintf("%s %s | %s\n", icon, ch.DisplayName(), ch.ChannelID))
	}
	sb.WriteString("\n点击按钮切换启用状态，主频道不可停用。")
	return sb.String(), keyboards.ChannelToggleKeyboard(channels)
}

// ToggleChannel /togglechannel <id>
func ToggleChannel(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return c.Send("❌ 用法: /togglechannel <频道ID>")
	}
	return c.Send(toggleChannelText(args[0]))
}

func toggleChannelText(channelID string) string {
	active, err := svc.Channels.Toggle(channelID)
	if err != nil {
		return adminError("切换频道失败", err)
	}
	if active {
		return "🟢 频道已启用"
	}
	return "🔴 频道已停用，新的订阅不再包含该频道"
}

// Subscribers /subscribers 命令处理器
func Subscribers(c tele.Context) error {
	text, markup := subscribersPage(1)
	return c.Send(text, markup)
}

func subscribersPage(page int) (string, *tele.ReplyMarkup) {
	if page < 1 {
		page = 1
	}
	views, total, err := svc.Stats.ListSubscribers(subscribersPageSize, (page-1)*subscribersPageSize)
	if err != nil {
		return adminError("读取订阅者失败", err), keyboards.CloseKeyboard()
	}
	if total == 0 {
		return "👥 暂无有效订阅者", keyboards.CloseKeyboard()
	}

	pages := keyboards.TotalPages(total, subscribersPageSize)
	if page > pages {
		return subscribersPage(pages)
	}
	loc := svc.Config.Location()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👥 有效订阅者 (%d)  第 %d/%d 页\n\n", total, page, pages))
	for _, v := range views {
		tag := ""
		if v.IsTrial {
			tag = " 🆓"
		}
		sb.WriteString(fmt.Sprintf("· %s (%d)%s\n   到期 %s | 剩余 %d 天\n",
			v.Name, v.UserID, tag, v.ExpiresAt.In(loc).Format("2006-01-02"), v.DaysLeft))
	}
	return sb.String(), keyboards.SubscribersPagination(page, pages)
}

// Stats /stats 命令处理器，发送文字统计和统计卡片
func Stats(c tele.Context) error {
	st, err := svc.Stats.Collect()
	if err != nil {
		return c.Send(adminError("统计失败", err))
	}

	png, err := statsCard(st).Render()
	if err != nil {
		logger.Warn().Err(err).Msg("生成统计卡片失败")
		return c.Send(st.Format(), tele.ModeMarkdown)
	}
	photo := &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(png)),
		Caption: st.Format(),
	}
	return c.Send(photo, tele.ModeMarkdown)
}

func statsCard(st *service.SystemStats) imggen.StatsCard {
	return imggen.StatsCard{
		Title:    svc.Config.BotName,
		Subtitle: "subscription stats",
		Items: []imggen.StatItem{
			{Label: "Active subscribers", Value: strconv.FormatInt(st.Subscribers.Active, 10)},
			{Label: "Active trials", Value: strconv.FormatInt(st.Subscribers.ActiveTrial, 10)},
			{Label: "Inactive", Value: strconv.FormatInt(st.Subscribers.Inactive, 10)},
			{Label: "Available codes", Value: strconv.FormatInt(st.Codes.Available, 10)},
			{Label: "Used codes", Value: strconv.FormatInt(st.Codes.Used, 10)},
			{Label: "Revenue", Value: fmt.Sprintf("%.2f", st.Codes.Revenue)},
			{Label: "Active channels", Value: strconv.FormatInt(st.ActiveChannels, 10)},
		},
		GeneratedAt: st.GeneratedAt.In(svc.Config.Location()),
	}
}

// CheckExpired /checkexpired 命令处理器
func CheckExpired(c tele.Context) error {
	return runSweep(c, service.SweepExpiry, "过期检查")
}

// CheckTrials /checktrials 命令处理器
func CheckTrials(c tele.Context) error {
	return runSweep(c, service.SweepTrial, "试用检查")
}

// SendNotifications /sendnotifications 命令处理器
func SendNotifications(c tele.Context) error {
	return runSweep(c, service.SweepNotifications, "到期提醒")
}

// runSweep 后台执行任务，完成后回报结果
func runSweep(c tele.Context, task, name string) error {
	if err := c.Send(fmt.Sprintf("⏳ 正在执行%s...", name)); err != nil {
		return err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		result, err := svc.Tasks.RunNow(ctx, task)
		if result == nil {
			_ = c.Send(adminError(name+"失败", err))
			return
		}
		text := result.FormatResult(name)
		if err != nil {
			text += "\n⚠️ 任务未完成: " + err.Error()
		}
		if sendErr := c.Send(text, tele.ModeMarkdown); sendErr != nil {
			logger.Warn().Err(sendErr).Str("task", task).Msg("发送任务结果失败")
		}
	}()
	return nil
}

// Backup /backup 命令处理器
func Backup(c tele.Context) error {
	result, err := svc.Backup.Backup()
	if err != nil {
		return c.Send(adminError("备份失败", err))
	}
	if _, err := svc.Backup.CleanOldBackups(); err != nil {
		logger.Warn().Err(err).Msg("清理旧备份失败")
	}

	doc := &tele.Document{
		File:     tele.FromDisk(result.FilePath),
		FileName: result.Filename,
		Caption: fmt.Sprintf("💾 备份完成\n\n📦 %s\n📊 %d 条记录\n📏 %s\n⏱️ %s",
			result.Filename, result.Records, service.FormatSize(result.Size), result.Duration.Round(time.Millisecond)),
	}
	return c.Send(doc)
}
