package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/database/models"
	"github.com/channelpass/channelpass/internal/database/repository"
	"github.com/channelpass/channelpass/internal/lock"
	"github.com/channelpass/channelpass/internal/metrics"
	"github.com/channelpass/channelpass/pkg/logger"
)

// inviteMemberLimit 每个邀请链接只能使用一次
const inviteMemberLimit = 1

// UserInfo 发起操作的用户资料
type UserInfo struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// LifecycleService 订阅兑换与试用
type LifecycleService struct {
	db            *gorm.DB
	codes         *repository.CodeRepository
	subs          *repository.SubscriberRepository
	channels      *repository.ChannelRepository
	api           ChannelAPI
	locker        lock.Locker
	cfg           config.LifecycleConfig
	mainChannelID string
	loc           *time.Location
	now           func() time.Time
}

// NewLifecycleService 创建生命周期服务，locker 为空时使用进程内锁
func NewLifecycleService(db *gorm.DB, api ChannelAPI, locker lock.Locker, cfg *config.Config) *LifecycleService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	mainID, _ := models.NormalizeChannelID(cfg.MainChannel.ID)
	return &LifecycleService{
		db:            db,
		codes:         repository.NewCodeRepository(db),
		subs:          repository.NewSubscriberRepository(db),
		channels:      repository.NewChannelRepository(db),
		api:           api,
		locker:        locker,
		cfg:           cfg.Lifecycle,
		mainChannelID: mainID,
		loc:           cfg.Location(),
		now:           utcNow,
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// Redeem 兑换订阅码
func (s *LifecycleService) Redeem(ctx context.Context, user UserInfo, rawCode string) *ActivationResult {
	code := NormalizeCode(rawCode)
	if !IsValidCodeFormat(code) {
		metrics.IncRedemption(outcomeLabel(ErrCodeNotFound))
		return failed(ErrCodeNotFound)
	}

	unlock, err := s.locker.Lock(ctx, lock.UserKey(user.ID))
	if err != nil {
		logger.Warn().Err(err).Int64("user_id", user.ID).Msg("获取用户锁失败")
		metrics.IncRedemption(outcomeLabel(ErrBusy))
		return failed(ErrBusy)
	}
	defer unlock()

	now := s.now()
	var (
		rejected error
		result   *ActivationResult
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		codes := s.codes.WithTx(tx)

		c, err := codes.GetByCodeForUpdate(code)
		if err != nil {
			if repository.IsNotFound(err) {
				rejected = ErrCodeNotFound
				return nil
			}
			return fmt.Errorf("读取订阅码: %w", err)
		}

		if rejected = checkRedeemable(c, now); rejected != nil {
			// 计数已满但未标记的订阅码在这里补上标记
			if rejected == ErrCodeExhausted && !c.IsUsed {
				return codes.MarkExhausted(c.ID)
			}
			return nil
		}

		c.CurrentUses++
		c.IsUsed = c.CurrentUses >= c.MaxUses
		c.UsedBy = &user.ID
		c.UsedAt = &now
		if err := codes.RecordUse(c); err != nil {
			return fmt.Errorf("更新订阅码: %w", err)
		}

		targets, err := s.resolveChannels(s.channels.WithTx(tx), c.ApplyToAllChannels, c.Channels, c.ExcludedChannels)
		if err != nil {
			return fmt.Errorf("读取频道: %w", err)
		}

		subs := s.subs.WithTx(tx)
		prior, err := subs.GetByUserIDForUpdate(user.ID)
		if err != nil && !repository.IsNotFound(err) {
			return fmt.Errorf("读取订阅者: %w", err)
		}

		expiresAt := now.AddDate(0, 0, c.DurationDays)
		links, linkFailures := s.issueLinks(ctx, user.ID, targets, expiresAt)

		sub := &models.Subscriber{
			UserID:             user.ID,
			Username:           user.Username,
			FirstName:          user.FirstName,
			LastName:           user.LastName,
			CodeUsed:           c.Code,
			SubscribedAt:       now,
			ExpiresAt:          expiresAt,
			IsActive:           true,
			Channels:           nonNil(c.Channels),
			ExcludedChannels:   nonNil(c.ExcludedChannels),
			ApplyToAllChannels: c.ApplyToAllChannels,
			InviteLinks:        links,
			IsTrial:            false,
			TrialUsed:          prior != nil && (prior.TrialUsed || prior.IsTrial),
		}
		if err := subs.Upsert(sub); err != nil {
			return fmt.Errorf("保存订阅者: %w", err)
		}

		result = &ActivationResult{
			Success:      true,
			Code:         c.Code,
			InviteLinks:  links,
			ExpiresAt:    expiresAt,
			DurationDays: c.DurationDays,
			LinkFailures: linkFailures,
		}
		return nil
	})

	if err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Str("code", code).Msg("兑换订阅码失败，事务已回滚")
		metrics.IncRedemption(outcomeLabel(ErrPersistence))
		return failed(fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	if rejected != nil {
		logger.Info().Int64("user_id", user.ID).Str("code", code).Str("reason", rejected.Error()).Msg("订阅码兑换被拒绝")
		metrics.IncRedemption(outcomeLabel(rejected))
		return failed(rejected)
	}

	result.Message = fmt.Sprintf(
		"✅ 订阅开通成功！\n\n🎫 订阅码: %s\n⏰ 时长: %d 天\n📅 到期时间: %s",
		result.Code, result.DurationDays, s.formatTime(result.ExpiresAt),
	)

	logger.Info().
		Int64("user_id", user.ID).
		Str("code", code).
		Int("days", result.DurationDays).
		Int("links", len(result.InviteLinks)).
		Int("link_failures", result.LinkFailures).
		Msg("订阅码兑换成功")
	metrics.IncRedemption("success")

	return result
}

// ActivateTrial 开通一次性试用
func (s *LifecycleService) ActivateTrial(ctx context.Context, user UserInfo) *ActivationResult {
	unlock, err := s.locker.Lock(ctx, lock.UserKey(user.ID))
	if err != nil {
		logger.Warn().Err(err).Int64("user_id", user.ID).Msg("获取用户锁失败")
		metrics.IncTrial(outcomeLabel(ErrBusy))
		return failed(ErrBusy)
	}
	defer unlock()

	now := s.now()
	days := s.cfg.TrialDays
	var (
		rejected error
		result   *ActivationResult
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subs := s.subs.WithTx(tx)

		prior, err := subs.GetByUserIDForUpdate(user.ID)
		if err != nil && !repository.IsNotFound(err) {
			return fmt.Errorf("读取订阅者: %w", err)
		}
		if prior != nil {
			if prior.TrialConsumed(now) {
				rejected = ErrTrialAlreadyUsed
				return nil
			}
			if prior.HasActiveSubscription(now) {
				rejected = ErrActiveSubscriptionExists
				return nil
			}
		}

		codes := s.codes.WithTx(tx)
		trialCode, err := uniqueCode(codes, func() (string, error) {
			suffix, err := randomCode(8)
			return "TRIAL_" + suffix, err
		})
		if err != nil {
			return err
		}

		record := &models.Code{
			Code:               trialCode,
			DurationDays:       days,
			Price:              0,
			IsUsed:             true,
			UsedBy:             &user.ID,
			UsedAt:             &now,
			CreatedAt:          now,
			Channels:           []string{},
			ExcludedChannels:   []string{},
			ApplyToAllChannels: true,
			MaxUses:            1,
			CurrentUses:        1,
			IsActive:           false,
			IsTrial:            true,
		}
		if err := codes.Create(record); err != nil {
			return fmt.Errorf("保存试用码: %w", err)
		}

		targets, err := s.resolveChannels(s.channels.WithTx(tx), true, nil, nil)
		if err != nil {
			return fmt.Errorf("读取频道: %w", err)
		}

		expiresAt := now.Add(time.Duration(days) * 24 * time.Hour)
		links, linkFailures := s.issueLinks(ctx, user.ID, targets, expiresAt)

		sub := &models.Subscriber{
			UserID:             user.ID,
			Username:           user.Username,
			FirstName:          user.FirstName,
			LastName:           user.LastName,
			CodeUsed:           trialCode,
			SubscribedAt:       now,
			ExpiresAt:          expiresAt,
			IsActive:           true,
			Channels:           []string{},
			ExcludedChannels:   []string{},
			ApplyToAllChannels: true,
			InviteLinks:        links,
			IsTrial:            true,
			// 到期清理时才会置为 true；激活期间由 TrialConsumed 防止重复开通
			TrialUsed: false,
		}
		if err := subs.Upsert(sub); err != nil {
			return fmt.Errorf("保存订阅者: %w", err)
		}

		result = &ActivationResult{
			Success:      true,
			Code:         trialCode,
			InviteLinks:  links,
			ExpiresAt:    expiresAt,
			DurationDays: days,
			IsTrial:      true,
			LinkFailures: linkFailures,
		}
		return nil
	})

	if err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("开通试用失败，事务已回滚")
		metrics.IncTrial(outcomeLabel(ErrPersistence))
		return failed(fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	if rejected != nil {
		logger.Info().Int64("user_id", user.ID).Str("reason", rejected.Error()).Msg("试用开通被拒绝")
		metrics.IncTrial(outcomeLabel(rejected))
		return failed(rejected)
	}

	result.Message = fmt.Sprintf(
		"✅ 试用开通成功！\n\n🎫 试用码: %s\n⏰ 时长: %d 小时\n📅 到期时间: %s\n\n⚠️ 每个用户仅可试用一次",
		result.Code, days*24, s.formatTime(result.ExpiresAt),
	)

	logger.Info().
		Int64("user_id", user.ID).
		Str("code", result.Code).
		Int("links", len(result.InviteLinks)).
		Msg("试用开通成功")
	metrics.IncTrial("success")

	return result
}

// GetSubscription 获取用户当前订阅
func (s *LifecycleService) GetSubscription(userID int64) (*models.Subscriber, error) {
	sub, err := s.subs.GetByUserID(userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return sub, nil
}

// Now 当前时间（UTC）
func (s *LifecycleService) Now() time.Time {
	return s.now()
}

// checkRedeemable 依次检查存在/启用、过期、次数
func checkRedeemable(c *models.Code, now time.Time) error {
	switch {
	case !c.IsActive:
		return ErrCodeNotFound
	case c.IsExpiredAt(now):
		return ErrCodeExpired
	case c.IsExhausted():
		return ErrCodeExhausted
	}
	return nil
}

// resolveChannels 计算需要发放邀请链接的频道，主频道永远不在其中
func (s *LifecycleService) resolveChannels(repo *repository.ChannelRepository, applyToAll bool, allow, exclude []string) ([]models.Channel, error) {
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		if norm, ok := models.NormalizeChannelID(id); ok {
			excluded[norm] = true
		}
	}

	var targets []models.Channel
	if applyToAll {
		list, err := repo.ListSecondaryActive()
		if err != nil {
			return nil, err
		}
		for _, ch := range list {
			if excluded[ch.ChannelID] || s.isMain(&ch) {
				continue
			}
			targets = append(targets, ch)
		}
		return targets, nil
	}

	seen := make(map[string]bool, len(allow))
	for _, id := range allow {
		norm, ok := models.NormalizeChannelID(id)
		if !ok || excluded[norm] || seen[norm] {
			continue
		}
		seen[norm] = true

		ch, err := repo.GetByChannelID(norm)
		if err != nil {
			if repository.IsNotFound(err) {
				logger.Warn().Str("channel_id", norm).Msg("订阅码指定的频道不存在，已跳过")
				continue
			}
			return nil, err
		}
		if !ch.IsActive || s.isMain(ch) {
			continue
		}
		targets = append(targets, *ch)
	}
	return targets, nil
}

func (s *LifecycleService) isMain(ch *models.Channel) bool {
	return ch.IsMainChannel || (s.mainChannelID != "" && ch.ChannelID == s.mainChannelID)
}

// issueLinks 为每个频道创建一次性邀请链接，失败时回退到公开地址
func (s *LifecycleService) issueLinks(ctx context.Context, userID int64, targets []models.Channel, expireAt time.Time) ([]models.InviteLink, int) {
	links := make([]models.InviteLink, 0, len(targets))
	failures := 0

	for _, ch := range targets {
		entry := models.InviteLink{
			ChannelID:       ch.ChannelID,
			ChannelName:     ch.DisplayName(),
			ChannelUsername: ch.ChannelUsername,
		}

		link, err := s.api.CreateInviteLink(ctx, ch.ChannelID, expireAt, inviteMemberLimit)
		metrics.IncChannelAPICall("create_invite_link", err == nil)
		if err != nil {
			failures++
			fallback := ch.PublicURL()
			logger.Warn().
				Err(err).
				Int64("user_id", userID).
				Str("channel_id", ch.ChannelID).
				Bool("fallback", fallback != "").
				Msg("创建邀请链接失败")
			if fallback == "" {
				continue
			}
			entry.InviteLink = fallback
			entry.Fallback = true
		} else {
			entry.InviteLink = link
		}
		links = append(links, entry)
	}
	return links, failures
}

func (s *LifecycleService) formatTime(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02 15:04")
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// outcomeLabel 指标标签
func outcomeLabel(err error) string {
	switch err {
	case ErrCodeNotFound:
		return "code_not_found"
	case ErrCodeExpired:
		return "code_expired"
	case ErrCodeExhausted:
		return "code_exhausted"
	case ErrTrialAlreadyUsed:
		return "trial_already_used"
	case ErrActiveSubscriptionExists:
		return "active_subscription_exists"
	case ErrBusy:
		return "busy"
	case ErrPersistence:
		return "persistence_failure"
	}
	return "other"
}
