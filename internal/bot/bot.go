// Package bot Telegram Bot 核心
package bot

import (
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/channelpass/channelpass/internal/bot/handlers"
	"github.com/channelpass/channelpass/internal/bot/middleware"
	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/pkg/logger"
)

// 普通用户每分钟的请求上限
const userRateLimit = 30

// Bot Telegram Bot 实例
type Bot struct {
	*tele.Bot
	cfg  *config.Config
	auth middleware.Authorizer
}

// NewTeleBot 创建底层 Bot，处理器在 Setup 中注册
func NewTeleBot(cfg *config.Config) (*tele.Bot, error) {
	pref := tele.Settings{
		Token:  cfg.BotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			logger.Error().Err(err).Msg("Bot 错误")
		},
	}
	return tele.NewBot(pref)
}

// Setup 注入服务并注册中间件、处理器和命令列表
func Setup(b *tele.Bot, cfg *config.Config, svc *handlers.Services) *Bot {
	handlers.Init(svc)

	bot := &Bot{
		Bot:  b,
		cfg:  cfg,
		auth: svc.Admins,
	}

	bot.registerMiddleware()
	bot.registerHandlers()
	bot.setCommands(svc)

	return bot
}

// registerMiddleware 注册中间件
func (b *Bot) registerMiddleware() {
	b.Use(middleware.Logger())
	b.Use(middleware.Recover())
	b.Use(middleware.RateLimit(b.auth, userRateLimit))
}

// registerHandlers 注册所有处理器
func (b *Bot) registerHandlers() {
	// 用户命令
	b.Handle("/start", handlers.Start)
	b.Handle("/help", handlers.Help)
	b.Handle("/channels", handlers.Channels)
	b.Handle("/mainchannel", handlers.MainChannel)
	b.Handle("/cancel", handlers.Cancel)

	// 兑换、试用和订阅详情包含邀请链接，只在私聊中处理
	private := b.Group()
	private.Use(middleware.PrivateOnly())
	private.Handle("/use", handlers.Use)
	private.Handle("/trial", handlers.Trial)
	private.Handle("/mysubscription", handlers.MySubscription)

	// 管理员命令
	adminGroup := b.Group()
	adminGroup.Use(middleware.AdminOnly(b.auth))

	adminGroup.Handle("/admin", handlers.Admin)
	adminGroup.Handle("/createcode", handlers.CreateCode)
	adminGroup.Handle("/createbatch", handlers.CreateBatch)
	adminGroup.Handle("/createmultiple", handlers.CreateMultiple)
	adminGroup.Handle("/codes", handlers.Codes)
	adminGroup.Handle("/subscribers", handlers.Subscribers)
	adminGroup.Handle("/stats", handlers.Stats)
	adminGroup.Handle("/addchannel", handlers.AddChannel)
	adminGroup.Handle("/channelslist", handlers.ChannelsList)
	adminGroup.Handle("/togglechannel", handlers.ToggleChannel)
	adminGroup.Handle("/checkexpired", handlers.CheckExpired)
	adminGroup.Handle("/checktrials", handlers.CheckTrials)
	adminGroup.Handle("/sendnotifications", handlers.SendNotifications)
	adminGroup.Handle("/buttons", handlers.ButtonsList)
	adminGroup.Handle("/addbutton", handlers.AddButton)
	adminGroup.Handle("/deletebutton", handlers.DeleteButton)
	adminGroup.Handle("/editbutton", handlers.EditButton)
	adminGroup.Handle("/togglebutton", handlers.ToggleButton)

	// Owner 命令
	ownerGroup := b.Group()
	ownerGroup.Use(middleware.OwnerOnly(b.auth))

	ownerGroup.Handle("/addadmin", handlers.AddAdmin)
	ownerGroup.Handle("/removeadmin", handlers.RemoveAdmin)
	ownerGroup.Handle("/admins", handlers.Admins)
	ownerGroup.Handle("/backup", handlers.Backup)

	// 回调查询
	b.Handle(tele.OnCallback, handlers.OnCallback)

	// 文本消息：会话状态、自定义命令、订阅码
	b.Handle(tele.OnText, handlers.OnText)
}

// setCommands 设置命令列表
func (b *Bot) setCommands(svc *handlers.Services) {
	userCmds := []tele.Command{
		{Text: "start", Description: "开始使用"},
		{Text: "use", Description: "兑换订阅码"},
		{Text: "trial", Description: "免费试用"},
		{Text: "mysubscription", Description: "我的订阅"},
		{Text: "channels", Description: "频道列表"},
		{Text: "mainchannel", Description: "主频道"},
		{Text: "help", Description: "使用帮助"},
	}

	adminCmds := append(append([]tele.Command{}, userCmds...), []tele.Command{
		{Text: "admin", Description: "管理面板 [管理]"},
		{Text: "createcode", Description: "创建订阅码 [管理]"},
		{Text: "createbatch", Description: "批量创建订阅码 [管理]"},
		{Text: "createmultiple", Description: "大量创建订阅码 [管理]"},
		{Text: "codes", Description: "可用订阅码 [管理]"},
		{Text: "subscribers", Description: "有效订阅者 [管理]"},
		{Text: "stats", Description: "系统统计 [管理]"},
		{Text: "addchannel", Description: "添加频道 [管理]"},
		{Text: "channelslist", Description: "频道管理 [管理]"},
		{Text: "togglechannel", Description: "启用/停用频道 [管理]"},
		{Text: "checkexpired", Description: "手动过期检查 [管理]"},
		{Text: "checktrials", Description: "手动试用检查 [管理]"},
		{Text: "sendnotifications", Description: "发送到期提醒 [管理]"},
		{Text: "buttons", Description: "自定义按钮 [管理]"},
		{Text: "addbutton", Description: "添加按钮 [管理]"},
	}...)

	ownerCmds := append(append([]tele.Command{}, adminCmds...), []tele.Command{
		{Text: "addadmin", Description: "添加管理员 [owner]"},
		{Text: "removeadmin", Description: "移除管理员 [owner]"},
		{Text: "admins", Description: "管理员列表 [owner]"},
		{Text: "backup", Description: "备份数据库 [owner]"},
	}...)

	if err := b.SetCommands(userCmds); err != nil {
		logger.Warn().Err(err).Msg("设置命令列表失败")
	}

	admins, err := svc.Admins.List()
	if err != nil {
		logger.Warn().Err(err).Msg("读取管理员失败，跳过管理员命令列表")
	}
	for _, a := range admins {
		if a.UserID == b.cfg.Owner {
			continue
		}
		if err := b.SetCommands(adminCmds, tele.CommandScope{Type: tele.CommandScopeChat, ChatID: a.UserID}); err != nil {
			logger.Debug().Err(err).Int64("admin", a.UserID).Msg("设置管理员命令失败")
		}
	}

	if b.cfg.Owner != 0 {
		if err := b.SetCommands(ownerCmds, tele.CommandScope{Type: tele.CommandScopeChat, ChatID: b.cfg.Owner}); err != nil {
			logger.Debug().Err(err).Msg("设置 Owner 命令失败")
		}
	}
}

// Run 运行 Bot
func (b *Bot) Run() {
	logger.Info().Str("bot", b.cfg.BotName).Msg("Bot 启动中...")
	b.Start()
}

// Stop 停止 Bot
func (b *Bot) Stop() {
	logger.Info().Msg("Bot 停止中...")
	b.Bot.Stop()
}
