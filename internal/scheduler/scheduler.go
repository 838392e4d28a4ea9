// Package scheduler 定时任务调度
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/service"
	"github.com/channelpass/channelpass/pkg/logger"
)

// TaskBackup 数据库备份任务名
const TaskBackup = "backup"

// ErrUnknownTask 未知任务
var ErrUnknownTask = errors.New("未知任务")

// Sweeper 订阅清理任务
type Sweeper interface {
	CheckExpired(ctx context.Context) (*service.SweepResult, error)
	CheckExpiredTrials(ctx context.Context) (*service.SweepResult, error)
	SendExpiryNotifications(ctx context.Context) (*service.SweepResult, error)
}

// Backuper 数据库备份
type Backuper interface {
	Backup() (*service.BackupResult, error)
	CleanOldBackups() (int, error)
}

// Notifier 向 Owner 发送任务报告
type Notifier interface {
	SendMessage(ctx context.Context, userID int64, text string) error
}

// Scheduler 定时任务调度器
type Scheduler struct {
	cron     *gocron.Scheduler
	cfg      *config.Config
	sweeper  Sweeper
	backup   Backuper
	notifier Notifier

	// 手动触发和定时任务互斥
	running sync.Mutex
}

// New 创建调度器
func New(cfg *config.Config, sweeper Sweeper, backup Backuper, notifier Notifier) *Scheduler {
	s := gocron.NewScheduler(cfg.Location())
	s.SetMaxConcurrentJobs(1, gocron.WaitMode)

	return &Scheduler{
		cron:     s,
		cfg:      cfg,
		sweeper:  sweeper,
		backup:   backup,
		notifier: notifier,
	}
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	logger.Info().Str("timezone", s.cfg.Timezone).Msg("启动定时任务调度器")

	if err := s.registerJobs(); err != nil {
		return err
	}

	s.cron.StartAsync()
	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	logger.Info().Msg("停止定时任务调度器")
	s.cron.Stop()
}

// registerJobs 注册所有定时任务
func (s *Scheduler) registerJobs() error {
	cfg := s.cfg.Scheduler

	jobs := []struct {
		enabled bool
		at      string
		task    string
		name    string
	}{
		{cfg.SendNotifications, cfg.NotifyAt, service.SweepNotifications, "到期提醒"},
		{cfg.CheckExpired, cfg.ExpiryAt, service.SweepExpiry, "过期检查"},
		{cfg.CheckTrials, cfg.TrialAt, service.SweepTrial, "试用检查"},
		{cfg.BackupDB, cfg.BackupAt, TaskBackup, "数据库备份"},
	}

	for _, j := range jobs {
		if !j.enabled {
			continue
		}
		task := j.task
		if _, err := s.cron.Every(1).Day().At(j.at).Tag(task).Do(func() { s.runScheduled(task) }); err != nil {
			return fmt.Errorf("注册任务 %s: %w", task, err)
		}
		logger.Info().Str("task", task).Str("at", j.at).Msgf("已注册: %s任务", j.name)
	}
	return nil
}

// jobContext 未配置超时时不设截止时间，清理任务会处理完所有到期行
func (s *Scheduler) jobContext() (context.Context, context.CancelFunc) {
	if m := s.cfg.Scheduler.JobTimeoutMinutes; m > 0 {
		return context.WithTimeout(context.Background(), time.Duration(m)*time.Minute)
	}
	return context.WithCancel(context.Background())
}

// runScheduled 定时触发，错误只记录日志
func (s *Scheduler) runScheduled(task string) {
	log := logger.With("scheduler").With().Str("task", task).Str("run_id", uuid.NewString()).Logger()
	log.Info().Msg("执行定时任务")

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("定时任务 panic")
		}
	}()

	ctx, cancel := s.jobContext()
	defer cancel()

	if task == TaskBackup {
		s.running.Lock()
		defer s.running.Unlock()
		s.backupDatabase()
		return
	}

	result, err := s.RunNow(ctx, task)
	if err != nil {
		log.Error().Err(err).Msg("定时任务失败")
	}
	if result != nil && result.Touched() {
		s.report(ctx, result)
	}
}

// RunNow 同步执行指定清理任务，供管理命令使用
func (s *Scheduler) RunNow(ctx context.Context, task string) (*service.SweepResult, error) {
	s.running.Lock()
	defer s.running.Unlock()

	switch task {
	case service.SweepExpiry:
		return s.sweeper.CheckExpired(ctx)
	case service.SweepTrial:
		return s.sweeper.CheckExpiredTrials(ctx)
	case service.SweepNotifications:
		return s.sweeper.SendExpiryNotifications(ctx)
	}
	logger.Warn().Str("task", task).Msg("未知任务")
	return nil, fmt.Errorf("%w: %s", ErrUnknownTask, task)
}

// report 向 Owner 发送任务报告
func (s *Scheduler) report(ctx context.Context, result *service.SweepResult) {
	if s.notifier == nil || s.cfg.Owner == 0 {
		return
	}
	text := result.FormatResult(taskName(result.Sweep))
	if err := s.notifier.SendMessage(ctx, s.cfg.Owner, text); err != nil {
		logger.Warn().Err(err).Str("task", result.Sweep).Msg("发送任务报告失败")
	}
}

func taskName(task string) string {
	switch task {
	case service.SweepExpiry:
		return "定时过期检查"
	case service.SweepTrial:
		return "定时试用检查"
	case service.SweepNotifications:
		return "定时到期提醒"
	}
	return task
}

// backupDatabase 备份数据库并清理旧备份
func (s *Scheduler) backupDatabase() {
	if s.backup == nil {
		return
	}

	result, err := s.backup.Backup()
	if err != nil {
		logger.Error().Err(err).Msg("定时备份失败")
		return
	}

	logger.Info().
		Str("file", result.Filename).
		Int64("size", result.Size).
		Int("records", result.Records).
		Msg("定时备份完成")

	deleted, err := s.backup.CleanOldBackups()
	if err != nil {
		logger.Warn().Err(err).Msg("清理旧备份失败")
	} else if deleted > 0 {
		logger.Info().Int("deleted", deleted).Msg("已清理旧备份")
	}
}
