// Package web Web API 服务
package web

import (
	"fmt"
	"html"
	"runtime"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/service"
	pkglogger "github.com/channelpass/channelpass/pkg/logger"
)

const serviceName = "channelpass"

// StatsProvider 系统统计
type StatsProvider interface {
	Collect() (*service.SystemStats, error)
}

// Pinger 数据库连通性检查
type Pinger interface {
	Ping() error
}

// Server Web 服务器
type Server struct {
	app       *fiber.App
	cfg       *config.Config
	stats     StatsProvider
	db        Pinger
	startTime time.Time
}

// New 创建 Web 服务器
func New(cfg *config.Config, stats StatsProvider, db Pinger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	if cfg.Environment != "test" {
		app.Use(logger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.API.AllowOrigins, ","),
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	server := &Server{
		app:       app,
		cfg:       cfg,
		stats:     stats,
		db:        db,
		startTime: time.Now(),
	}

	server.registerRoutes()

	return server
}

// registerRoutes 注册路由
func (s *Server) registerRoutes() {
	s.app.Get("/", s.index)
	s.app.Get("/health", s.healthCheck)
	s.app.Get("/status", s.detailedStatus)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := s.app.Group("/api/v1")
	v1.Get("/stats", s.getStats)
}

// App 底层 fiber 应用
func (s *Server) App() *fiber.App {
	return s.app
}

// Start 启动服务器
func (s *Server) Start() error {
	if !s.cfg.API.Enabled {
		pkglogger.Info().Msg("【API服务】未启用，跳过...")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.API.Host, s.cfg.API.Port)
	pkglogger.Info().Str("addr", addr).Msg("【API服务】启动中...")

	return s.app.Listen(addr)
}

// Stop 停止服务器
func (s *Server) Stop() error {
	return s.app.Shutdown()
}

// index 简单状态页，附带订阅概况
func (s *Server) index(c *fiber.Ctx) error {
	summary := "unavailable"
	if sub := s.subscriptions(); sub != nil {
		summary = fmt.Sprintf("%d active subscribers (%d trial), %d codes available, %d channels",
			sub.ActiveSubscribers, sub.ActiveTrials, sub.AvailableCodes, sub.ActiveChannels)
	}

	c.Type("html", "utf-8")
	return c.SendString(fmt.Sprintf(
		"<!DOCTYPE html><html><head><title>%[1]s</title></head><body>"+
			"<h1>%[1]s</h1><p>Status: running</p><p>Uptime: %[2]s</p><p>%[3]s</p>"+
			"<p><a href=\"/health\">health</a> · <a href=\"/status\">status</a></p>"+
			"</body></html>",
		html.EscapeString(s.cfg.BotName), s.uptime(), summary,
	))
}

func (s *Server) uptime() string {
	return time.Since(s.startTime).Round(time.Second).String()
}

// HealthResponse 健康检查响应，供保活和部署平台探测
type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Service     string `json:"service"`
	Environment string `json:"environment"`
}

func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Service:     serviceName,
		Environment: s.cfg.Environment,
	})
}

// StatusResponse 详细状态，数据库不可用时返回 503
type StatusResponse struct {
	Status        string              `json:"status"`
	Uptime        string              `json:"uptime"`
	Runtime       RuntimeInfo         `json:"runtime"`
	Database      DatabaseStatus      `json:"database"`
	Bot           BotStatus           `json:"bot"`
	Subscriptions *SubscriptionStatus `json:"subscriptions,omitempty"`
}

// RuntimeInfo 进程信息
type RuntimeInfo struct {
	GoVersion    string  `json:"go_version"`
	NumGoroutine int     `json:"num_goroutine"`
	HeapMB       float64 `json:"heap_mb"`
}

// DatabaseStatus 数据库状态
type DatabaseStatus struct {
	Driver    string `json:"driver"`
	Connected bool   `json:"connected"`
}

// BotStatus Bot 配置状态
type BotStatus struct {
	Name          string `json:"name"`
	TokenSet      bool   `json:"token_set"`
	MainChannelID string `json:"main_channel_id"`
	Timezone      string `json:"timezone"`
}

// SubscriptionStatus 订阅概况
type SubscriptionStatus struct {
	ActiveSubscribers int64 `json:"active_subscribers"`
	ActiveTrials      int64 `json:"active_trials"`
	AvailableCodes    int64 `json:"available_codes"`
	ActiveChannels    int64 `json:"active_channels"`
}

// subscriptions 统计失败时返回 nil，状态页仍可访问
func (s *Server) subscriptions() *SubscriptionStatus {
	if s.stats == nil {
		return nil
	}
	st, err := s.stats.Collect()
	if err != nil {
		pkglogger.Debug().Err(err).Msg("状态页读取统计失败")
		return nil
	}
	return &SubscriptionStatus{
		ActiveSubscribers: st.Subscribers.Active,
		ActiveTrials:      st.Subscribers.ActiveTrial,
		AvailableCodes:    st.Codes.Available,
		ActiveChannels:    st.ActiveChannels,
	}
}

func (s *Server) detailedStatus(c *fiber.Ctx) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := StatusResponse{
		Status: "ok",
		Uptime: s.uptime(),
		Runtime: RuntimeInfo{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			HeapMB:       float64(mem.HeapAlloc) / 1024 / 1024,
		},
		Database: DatabaseStatus{
			Driver:    s.cfg.Database.Driver,
			Connected: s.db != nil && s.db.Ping() == nil,
		},
		Bot: BotStatus{
			Name:          s.cfg.BotName,
			TokenSet:      s.cfg.BotToken != "",
			MainChannelID: s.cfg.MainChannel.ID,
			Timezone:      s.cfg.Location().String(),
		},
	}

	if !resp.Database.Connected {
		resp.Status = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	resp.Subscriptions = s.subscriptions()
	return c.JSON(resp)
}

func (s *Server) getStats(c *fiber.Ctx) error {
	st, err := s.stats.Collect()
	if err != nil {
		pkglogger.Warn().Err(err).Msg("获取统计失败")
		return fiber.NewError(fiber.StatusInternalServerError, "获取统计失败")
	}
	return c.JSON(st)
}
