// Package config 配置管理模块
package config

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config 全局配置结构
type Config struct {
	BotName  string `json:"bot_name"`
	BotToken string `json:"bot_token"`
	// Owner 引导管理员，启动时写入 admins 表，不可被移除
	Owner       int64  `json:"owner"`
	Timezone    string `json:"timezone"`
	Environment string `json:"environment"`

	MainChannel ChannelConfig   `json:"main_channel"`
	Database    DatabaseConfig  `json:"database"`
	Scheduler   SchedulerConfig `json:"scheduler"`
	Lifecycle   LifecycleConfig `json:"lifecycle"`
	API         APIConfig       `json:"api"`
	KeepAlive   KeepAliveConfig `json:"keepalive"`
	Redis       RedisConfig     `json:"redis"`
}

// ChannelConfig 主频道配置
type ChannelConfig struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Driver 为 sqlite 或 mysql
	Driver   string `json:"driver"`
	Path     string `json:"path"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
	// BackupDir 备份目录，BackupMaxCount 保留的最多备份数
	BackupDir      string `json:"backup_dir"`
	BackupMaxCount int    `json:"backup_max_count"`
}

// SchedulerConfig 定时任务配置
type SchedulerConfig struct {
	CheckExpired      bool   `json:"check_expired"`
	CheckTrials       bool   `json:"check_trials"`
	SendNotifications bool   `json:"send_notifications"`
	NotifyAt          string `json:"notify_at"`
	ExpiryAt          string `json:"expiry_at"`
	TrialAt           string `json:"trial_at"`
	BackupDB          bool   `json:"backup_db"`
	BackupAt          string `json:"backup_at"`
	// JobTimeoutMinutes 单次清理任务超时（分钟），0 表示不限制
	JobTimeoutMinutes int `json:"job_timeout_minutes"`
}

// LifecycleConfig 订阅生命周期参数
type LifecycleConfig struct {
	TrialDays         int `json:"trial_days"`
	NotifyWindowHours int `json:"notify_window_hours"`
	RevokeDelayMs     int `json:"revoke_delay_ms"`
	SweepDelayMs      int `json:"sweep_delay_ms"`
	RetryAttempts     int `json:"retry_attempts"`
	RetryBaseDelayMs  int `json:"retry_base_delay_ms"`
	BatchLimit        int `json:"batch_limit"`
	BulkLimit         int `json:"bulk_limit"`
	CodeValidityDays  int `json:"code_validity_days"`
}

// APIConfig Web 服务配置
type APIConfig struct {
	Enabled      bool     `json:"enabled"`
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	AllowOrigins []string `json:"allow_origins"`
}

// KeepAliveConfig 保活配置
type KeepAliveConfig struct {
	Enabled         bool   `json:"enabled"`
	URL             string `json:"url"`
	IntervalMinutes int    `json:"interval_minutes"`
}

// RedisConfig 分布式锁使用的 Redis
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

var (
	cfg     *Config
	cfgLock sync.RWMutex
)

// ErrMissingToken 未配置机器人 Token
var ErrMissingToken = errors.New("bot_token 未配置")

// Load 加载配置文件，文件不存在时仅使用环境变量
func Load(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	config.applyEnv(os.Getenv)
	config.setDefaults()

	if config.BotToken == "" {
		return nil, ErrMissingToken
	}

	Set(&config)
	return &config, nil
}

// Set 替换全局配置
func Set(c *Config) {
	cfgLock.Lock()
	cfg = c
	cfgLock.Unlock()
}

// Get 获取全局配置（线程安全）
func Get() *Config {
	cfgLock.RLock()
	defer cfgLock.RUnlock()
	return cfg
}

// Save 保存配置到文件
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnv 环境变量覆盖
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("BOT_TOKEN"); v != "" {
		c.BotToken = v
	}
	if v := getenv("CHANNEL_ID"); v != "" {
		c.MainChannel.ID = v
	}
	if v := getenv("CHANNEL_USERNAME"); v != "" {
		c.MainChannel.Username = v
	}
	if v := getenv("ADMIN_IDS"); v != "" {
		ids := ParseIDList(v)
		if len(ids) > 0 {
			c.Owner = ids[0]
		}
	}
	if v := getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.API.Port = port
			c.API.Enabled = true
		}
	}
	if v := getenv("DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := getenv("RENDER"); v != "" {
		c.Environment = "render"
	}
	if v := getenv("KEEPALIVE_URL"); v != "" {
		c.KeepAlive.URL = v
		c.KeepAlive.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.BotName == "" {
		c.BotName = "Subscription Bot"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Riyadh"
	}
	if c.Environment == "" {
		c.Environment = "local"
	}
	if c.MainChannel.Name == "" {
		c.MainChannel.Name = "Main Channel"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "subscription_bot.db"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Scheduler.NotifyAt == "" {
		c.Scheduler.NotifyAt = "09:00"
	}
	if c.Scheduler.ExpiryAt == "" {
		c.Scheduler.ExpiryAt = "10:00"
	}
	if c.Scheduler.TrialAt == "" {
		c.Scheduler.TrialAt = "11:00"
	}
	if c.Database.BackupDir == "" {
		c.Database.BackupDir = "./backups"
	}
	if c.Database.BackupMaxCount == 0 {
		c.Database.BackupMaxCount = 7
	}
	if c.Scheduler.BackupAt == "" {
		c.Scheduler.BackupAt = "04:00"
	}
	c.Lifecycle.setDefaults()
	if c.API.Port == 0 {
		c.API.Port = 10000
	}
	if len(c.API.AllowOrigins) == 0 {
		c.API.AllowOrigins = []string{"*"}
	}
	if c.KeepAlive.IntervalMinutes == 0 {
		c.KeepAlive.IntervalMinutes = 10
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
}

func (l *LifecycleConfig) setDefaults() {
	if l.TrialDays == 0 {
		l.TrialDays = 2
	}
	if l.NotifyWindowHours == 0 {
		l.NotifyWindowHours = 24
	}
	if l.RevokeDelayMs == 0 {
		l.RevokeDelayMs = 500
	}
	if l.SweepDelayMs == 0 {
		l.SweepDelayMs = 1000
	}
	if l.RetryAttempts == 0 {
		l.RetryAttempts = 3
	}
	if l.RetryBaseDelayMs == 0 {
		l.RetryBaseDelayMs = 1000
	}
	if l.BatchLimit == 0 {
		l.BatchLimit = 100
	}
	if l.BulkLimit == 0 {
		l.BulkLimit = 1000
	}
	if l.CodeValidityDays == 0 {
		l.CodeValidityDays = 30
	}
}

// DefaultLifecycle 返回带默认值的生命周期参数
func DefaultLifecycle() LifecycleConfig {
	var l LifecycleConfig
	l.setDefaults()
	return l
}

// Location 配置的时区
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsOwner 判断是否是 Owner
func (c *Config) IsOwner(userID int64) bool {
	return userID == c.Owner
}

// NotifyWindow 到期提醒窗口
func (l LifecycleConfig) NotifyWindow() time.Duration {
	return time.Duration(l.NotifyWindowHours) * time.Hour
}

// RevokeDelay 每次移除成员之间的间隔
func (l LifecycleConfig) RevokeDelay() time.Duration {
	return time.Duration(l.RevokeDelayMs) * time.Millisecond
}

// SweepDelay 相邻订阅者处理间隔
func (l LifecycleConfig) SweepDelay() time.Duration {
	return time.Duration(l.SweepDelayMs) * time.Millisecond
}

// RetryBaseDelay 重试初始退避
func (l LifecycleConfig) RetryBaseDelay() time.Duration {
	return time.Duration(l.RetryBaseDelayMs) * time.Millisecond
}

// ParseIDList 解析逗号分隔的用户 ID，忽略非法项
func ParseIDList(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
