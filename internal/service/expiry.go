package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/database/models"
	"github.com/channelpass/channelpass/internal/database/repository"
	"github.com/channelpass/channelpass/internal/lock"
	"github.com/channelpass/channelpass/internal/metrics"
	"github.com/channelpass/channelpass/pkg/logger"
)

// ExpiryService 到期清理与到期提醒
type ExpiryService struct {
	subs          *repository.SubscriberRepository
	channels      *repository.ChannelRepository
	api           ChannelAPI
	locker        lock.Locker
	cfg           config.LifecycleConfig
	mainChannelID string
	mainHandle    string
	loc           *time.Location
	now           func() time.Time
}

// NewExpiryService 创建到期服务，locker 应与 LifecycleService 共用
func NewExpiryService(db *gorm.DB, api ChannelAPI, locker lock.Locker, cfg *config.Config) *ExpiryService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	mainID, _ := models.NormalizeChannelID(cfg.MainChannel.ID)
	return &ExpiryService{
		subs:          repository.NewSubscriberRepository(db),
		channels:      repository.NewChannelRepository(db),
		api:           api,
		locker:        locker,
		cfg:           cfg.Lifecycle,
		mainChannelID: mainID,
		mainHandle:    strings.ToLower(strings.TrimPrefix(cfg.MainChannel.Username, "@")),
		loc:           cfg.Location(),
		now:           utcNow,
	}
}

// CheckExpired 停用所有已过期的订阅并移出频道，试用行同时标记为已使用
func (s *ExpiryService) CheckExpired(ctx context.Context) (*SweepResult, error) {
	return s.sweep(ctx, SweepExpiry, false)
}

// CheckExpiredTrials 只处理已过期的试用
func (s *ExpiryService) CheckExpiredTrials(ctx context.Context) (*SweepResult, error) {
	return s.sweep(ctx, SweepTrial, true)
}

func (s *ExpiryService) sweep(ctx context.Context, name string, trialsOnly bool) (*SweepResult, error) {
	result := &SweepResult{
		RunID:     uuid.NewString(),
		Sweep:     name,
		StartedAt: s.now(),
	}
	log := logger.With("expiry").With().Str("run_id", result.RunID).Str("sweep", name).Logger()
	defer func() {
		result.FinishedAt = s.now()
		metrics.ObserveSweep(name, result.FinishedAt.Sub(result.StartedAt))
	}()

	var (
		expired []models.Subscriber
		err     error
	)
	if trialsOnly {
		expired, err = s.subs.ListExpiredTrials(result.StartedAt)
	} else {
		expired, err = s.subs.ListExpired(result.StartedAt)
	}
	if err != nil {
		log.Error().Err(err).Msg("获取过期订阅失败")
		return result, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	result.Checked = len(expired)
	log.Info().Int("count", len(expired)).Msg("🔍 开始处理过期订阅")

	mainIDs := s.mainChannelIDs()

	for i := range expired {
		if i > 0 {
			if err := sleepCtx(ctx, s.cfg.SweepDelay()); err != nil {
				log.Warn().Err(err).Int("remaining", len(expired)-i).Msg("清理任务被取消")
				return result, err
			}
		}

		item := s.expireOne(ctx, &expired[i], trialsOnly, mainIDs)
		result.Items = append(result.Items, item)
		metrics.IncSweepItem(name, string(item.Outcome))

		ev := log.Info()
		if item.Outcome == OutcomeFailed {
			ev = log.Warn().Err(item.Err)
		}
		ev.Int64("user_id", item.UserID).
			Str("outcome", string(item.Outcome)).
			Int("revoked", item.Revoked).
			Bool("notified", item.Notified).
			Msg("处理过期订阅")
	}

	log.Info().
		Int("checked", result.Checked).
		Int("succeeded", len(result.Succeeded())).
		Int("skipped", len(result.Skipped())).
		Int("failed", len(result.Failed())).
		Msg("✅ 过期订阅处理完成")

	return result, nil
}

// expireOne 处理单个订阅者，任何错误都记录在结果里而不是中断整批
func (s *ExpiryService) expireOne(ctx context.Context, sub *models.Subscriber, trialsOnly bool, mainIDs map[string]bool) ItemResult {
	item := ItemResult{UserID: sub.UserID}

	unlock, err := s.locker.Lock(ctx, lock.UserKey(sub.UserID))
	if err != nil {
		item.Outcome = OutcomeFailed
		item.Err = fmt.Errorf("%w: %v", ErrBusy, err)
		return item
	}
	defer unlock()

	changed, err := s.subs.Deactivate(sub.UserID, s.now(), trialsOnly)
	if err != nil {
		item.Outcome = OutcomeFailed
		item.Err = fmt.Errorf("%w: %v", ErrPersistence, err)
		return item
	}
	if !changed {
		// 已被其他流程停用或续期
		item.Outcome = OutcomeSkipped
		return item
	}

	item.Outcome = OutcomeProcessed
	item.Revoked, item.Err = s.revoke(ctx, sub.UserID, sub.InviteLinks, mainIDs)
	if item.Err != nil {
		item.Outcome = OutcomeFailed
	}

	item.Notified = s.notify(ctx, sub.UserID, s.expiredMessage(sub))
	return item
}

// RevokeChannels 将用户移出邀请链接对应的频道，主频道除外，返回成功移出的频道数
func (s *ExpiryService) RevokeChannels(ctx context.Context, userID int64, links []models.InviteLink) (int, error) {
	return s.revoke(ctx, userID, links, s.mainChannelIDs())
}

func (s *ExpiryService) revoke(ctx context.Context, userID int64, links []models.InviteLink, mainIDs map[string]bool) (int, error) {
	pending := make([]string, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, l := range links {
		id, ok := models.NormalizeChannelID(l.ChannelID)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		if mainIDs[id] || s.isMainHandle(l.ChannelUsername) {
			continue
		}
		pending = append(pending, id)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	revoked := 0
	policy := RetryPolicy{Attempts: s.cfg.RetryAttempts, BaseDelay: s.cfg.RetryBaseDelay()}

	err := Retry(ctx, policy, "revoke_channels", func(ctx context.Context) error {
		var (
			remaining []string
			lastErr   error
		)
		for i, channelID := range pending {
			if i > 0 {
				if err := sleepCtx(ctx, s.cfg.RevokeDelay()); err != nil {
					return err
				}
			}
			err := s.api.RemoveMember(ctx, channelID, userID)
			metrics.IncChannelAPICall("remove_member", err == nil)
			if err != nil {
				logger.Warn().
					Err(err).
					Int64("user_id", userID).
					Str("channel_id", channelID).
					Msg("移出频道失败")
				remaining = append(remaining, channelID)
				lastErr = err
				continue
			}
			revoked++
		}

		// 只有整轮全部失败才视为接口不可用并重试
		if len(remaining) == len(pending) {
			return fmt.Errorf("%w: %v", ErrChannelAPI, lastErr)
		}
		pending = remaining
		return nil
	})

	return revoked, err
}

// mainChannelIDs 配置中的主频道以及数据库中标记为主频道的记录
func (s *ExpiryService) mainChannelIDs() map[string]bool {
	ids := make(map[string]bool, 2)
	if s.mainChannelID != "" {
		ids[s.mainChannelID] = true
	}
	if ch, err := s.channels.GetMain(); err == nil {
		ids[ch.ChannelID] = true
		if h := ch.Handle(); h != "" {
			ids["@"+h] = true
		}
	} else if !repository.IsNotFound(err) {
		logger.Warn().Err(err).Msg("读取主频道失败，仅使用配置中的主频道")
	}
	if s.mainHandle != "" {
		ids["@"+s.mainHandle] = true
	}
	return ids
}

func (s *ExpiryService) isMainHandle(username string) bool {
	h := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	return h != "" && h == s.mainHandle
}

// SendExpiryNotifications 提醒即将到期的订阅者，每个提醒窗口最多一次
func (s *ExpiryService) SendExpiryNotifications(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{
		RunID:     uuid.NewString(),
		Sweep:     SweepNotifications,
		StartedAt: s.now(),
	}
	log := logger.With("expiry").With().Str("run_id", result.RunID).Str("sweep", SweepNotifications).Logger()
	defer func() {
		result.FinishedAt = s.now()
		metrics.ObserveSweep(SweepNotifications, result.FinishedAt.Sub(result.StartedAt))
	}()

	expiring, err := s.subs.ListExpiring(result.StartedAt, s.cfg.NotifyWindow())
	if err != nil {
		log.Error().Err(err).Msg("获取即将到期订阅失败")
		return result, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	result.Checked = len(expiring)
	log.Info().Int("count", len(expiring)).Msg("📨 开始发送到期提醒")

	for i := range expiring {
		if i > 0 {
			if err := sleepCtx(ctx, s.cfg.SweepDelay()); err != nil {
				log.Warn().Err(err).Int("remaining", len(expiring)-i).Msg("提醒任务被取消")
				return result, err
			}
		}

		sub := &expiring[i]
		item := ItemResult{UserID: sub.UserID, Outcome: OutcomeProcessed}
		item.Notified = s.notify(ctx, sub.UserID, s.warningMessage(sub))
		if !item.Notified {
			item.Outcome = OutcomeFailed
			item.Err = ErrChannelAPI
		}

		// 发送失败也记录提醒时间，避免重复轰炸
		if err := s.subs.TouchNotification(sub.UserID, s.now()); err != nil {
			item.Outcome = OutcomeFailed
			item.Err = fmt.Errorf("%w: %v", ErrPersistence, err)
			log.Error().Err(err).Int64("user_id", sub.UserID).Msg("更新提醒时间失败")
		}

		result.Items = append(result.Items, item)
		metrics.IncSweepItem(SweepNotifications, string(item.Outcome))
	}

	log.Info().
		Int("checked", result.Checked).
		Int("notified", result.NotifiedCount()).
		Int("failed", len(result.Failed())).
		Msg("✅ 到期提醒发送完成")

	return result, nil
}

// notify 发送私聊消息，失败只记录日志
func (s *ExpiryService) notify(ctx context.Context, userID int64, text string) bool {
	err := s.api.SendMessage(ctx, userID, text)
	metrics.IncChannelAPICall("send_message", err == nil)
	metrics.IncNotification(err == nil)
	if err != nil {
		logger.Debug().Err(err).Int64("user_id", userID).Msg("发送通知失败")
		return false
	}
	return true
}

func (s *ExpiryService) expiredMessage(sub *models.Subscriber) string {
	if sub.IsTrial {
		return "⏰ 您的试用已到期\n\n" +
			"试用期间的频道访问权限已被移除。\n" +
			"如需继续访问，请联系管理员获取订阅码，使用 /use <订阅码> 开通。"
	}
	return fmt.Sprintf(
		"⚠️ 您的订阅已到期\n\n"+
			"📅 到期时间: %s\n"+
			"付费频道的访问权限已被移除，主频道不受影响。\n\n"+
			"如需续期，请使用新的订阅码: /use <订阅码>",
		sub.ExpiresAt.In(s.loc).Format("2006-01-02 15:04"),
	)
}

func (s *ExpiryService) warningMessage(sub *models.Subscriber) string {
	left := sub.ExpiresAt.Sub(s.now())
	hours := int(left.Hours())
	if hours < 1 {
		hours = 1
	}
	kind := "订阅"
	if sub.IsTrial {
		kind = "试用"
	}
	return fmt.Sprintf(
		"⏰ %s即将到期\n\n"+
			"您的%s将在约 %d 小时后到期（%s）。\n"+
			"请及时使用新的订阅码续期: /use <订阅码>",
		kind, kind, hours, sub.ExpiresAt.In(s.loc).Format("2006-01-02 15:04"),
	)
}
