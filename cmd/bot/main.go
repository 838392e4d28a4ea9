// ChannelPass
// Telegram Bot for paid channel subscriptions
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/channelpass/channelpass/internal/bot"
	"github.com/channelpass/channelpass/internal/bot/handlers"
	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/database"
	"github.com/channelpass/channelpass/internal/lock"
	"github.com/channelpass/channelpass/internal/metrics"
	"github.com/channelpass/channelpass/internal/scheduler"
	"github.com/channelpass/channelpass/internal/service"
	"github.com/channelpass/channelpass/internal/web"
	"github.com/channelpass/channelpass/pkg/logger"
)

var (
	configPath = flag.String("config", "config.json", "配置文件路径")
	debug      = flag.Bool("debug", false, "调试模式")
)

// 分布式锁的过期时间，需覆盖一次兑换的全部邀请链接创建
const lockTTL = 2 * time.Minute

func main() {
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init(logger.Options{Debug: *debug})
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	logger.Init(logger.Options{Debug: *debug, Timezone: cfg.Timezone, File: logger.DefaultFile})
	defer logger.Close()
	logger.Info().Msg("📢 ChannelPass 启动中...")
	logger.Info().Str("environment", cfg.Environment).Msg("✅ 配置加载完成")

	metrics.MustRegister()

	// 初始化数据库
	if err := database.Init(&cfg.Database); err != nil {
		logger.Fatal().Err(err).Msg("初始化数据库失败")
	}
	defer database.Close()
	db := database.GetDB()

	if err := database.Seed(db, cfg); err != nil {
		logger.Fatal().Err(err).Msg("写入初始数据失败")
	}
	logger.Info().Msg("✅ 数据库连接成功")

	// 用户锁
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("连接 Redis 失败")
		}
		locker = lock.NewRedisLocker(rdb, lockTTL)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("✅ 使用 Redis 分布式锁")
	}

	// 初始化 Telegram Bot
	teleBot, err := bot.NewTeleBot(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化 Telegram Bot 失败")
	}
	api := bot.NewTelegramAPI(teleBot)

	expiry := service.NewExpiryService(db, api, locker, cfg)
	backup := service.NewBackupService(db, &cfg.Database)
	stats := service.NewStatsService(db)

	// 初始化定时任务调度器
	sched := scheduler.New(cfg, expiry, backup, api)
	if err := sched.Start(); err != nil {
		logger.Fatal().Err(err).Msg("启动定时任务失败")
	}
	defer sched.Stop()
	logger.Info().Msg("✅ 定时任务调度器启动")

	tgBot := bot.Setup(teleBot, cfg, &handlers.Services{
		Config:    cfg,
		Lifecycle: service.NewLifecycleService(db, api, locker, cfg),
		Codes:     service.NewCodeService(db, cfg),
		Admins:    service.NewAdminService(db, cfg),
		Channels:  service.NewChannelService(db, cfg),
		Buttons:   service.NewButtonService(db),
		Stats:     stats,
		Backup:    backup,
		Tasks:     sched,
	})
	logger.Info().Str("bot", cfg.BotName).Msg("✅ Telegram Bot 初始化完成")

	// 初始化 Web API 服务
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("获取数据库连接失败")
	}
	webServer := web.New(cfg, stats, sqlDB)
	go func() {
		if err := webServer.Start(); err != nil {
			logger.Error().Err(err).Msg("Web API 服务启动失败")
		}
	}()
	defer webServer.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.KeepAlive.Enabled {
		go web.NewKeepAlive(&cfg.KeepAlive).Run(ctx)
	}

	// 监听系统信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go tgBot.Run()

	logger.Info().Msg("🚀 ChannelPass 启动成功!")
	logger.Info().Msg("按 Ctrl+C 停止...")

	<-quit

	logger.Info().Msg("正在关闭服务...")
	tgBot.Stop()
	logger.Info().Msg("👋 再见!")
}
