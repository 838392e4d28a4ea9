package service

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/channelpass/channelpass/internal/database/repository"
	"github.com/channelpass/channelpass/internal/metrics"
)

// SystemStats 系统统计
type SystemStats struct {
	Subscribers    repository.SubscriberStats `json:"subscribers"`
	Codes          repository.CodeStats       `json:"codes"`
	ActiveChannels int64                      `json:"active_channels"`
	GeneratedAt    time.Time                  `json:"generated_at"`
}

// StatsService 统计服务
type StatsService struct {
	subs     *repository.SubscriberRepository
	codes    *repository.CodeRepository
	channels *repository.ChannelRepository
	now      func() time.Time
}

// NewStatsService 创建统计服务
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{
		subs:     repository.NewSubscriberRepository(db),
		codes:    repository.NewCodeRepository(db),
		channels: repository.NewChannelRepository(db),
		now:      utcNow,
	}
}

// Collect 汇总统计并刷新活跃订阅指标
func (s *StatsService) Collect() (*SystemStats, error) {
	now := s.now()

	subs, err := s.subs.CountStats(now)
	if err != nil {
		return nil, fmt.Errorf("统计订阅者失败: %w", err)
	}
	codes, err := s.codes.CountStats()
	if err != nil {
		return nil, fmt.Errorf("统计订阅码失败: %w", err)
	}
	channels, err := s.channels.CountActive()
	if err != nil {
		return nil, fmt.Errorf("统计频道失败: %w", err)
	}

	metrics.SetActiveSubscribers(subs.Active)

	return &SystemStats{
		Subscribers:    *subs,
		Codes:          *codes,
		ActiveChannels: channels,
		GeneratedAt:    now,
	}, nil
}

// ListSubscribers 分页获取有效订阅者
func (s *StatsService) ListSubscribers(limit, offset int) ([]SubscriberView, int64, error) {
	now := s.now()
	subs, total, err := s.subs.ListActive(now, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views := make([]SubscriberView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, SubscriberView{
			UserID:    sub.UserID,
			Name:      sub.DisplayName(),
			ExpiresAt: sub.ExpiresAt,
			DaysLeft:  sub.DaysLeft(now),
			IsTrial:   sub.IsTrial,
		})
	}
	return views, total, nil
}

// SubscriberView 列表展示用的订阅者
type SubscriberView struct {
	UserID    int64
	Name      string
	ExpiresAt time.Time
	DaysLeft  int
	IsTrial   bool
}

// Format 格式化为消息文本
func (st *SystemStats) Format() string {
	var sb strings.Builder
	sb.WriteString("📊 **系统统计**\n\n")
	sb.WriteString("👥 **订阅者**\n")
	sb.WriteString(fmt.Sprintf("├ 有效订阅: %d\n", st.Subscribers.Active))
	sb.WriteString(fmt.Sprintf("├ 试用中: %d\n", st.Subscribers.ActiveTrial))
	sb.WriteString(fmt.Sprintf("├ 已失效: %d\n", st.Subscribers.Inactive))
	sb.WriteString(fmt.Sprintf("└ 总计: %d\n\n", st.Subscribers.Total))
	sb.WriteString("🎫 **订阅码**\n")
	sb.WriteString(fmt.Sprintf("├ 总数: %d\n", st.Codes.Total))
	sb.WriteString(fmt.Sprintf("├ 可用: %d\n", st.Codes.Available))
	sb.WriteString(fmt.Sprintf("├ 已用完: %d\n", st.Codes.Used))
	sb.WriteString(fmt.Sprintf("├ 试用码: %d\n", st.Codes.Trials))
	sb.WriteString(fmt.Sprintf("└ 收入: %.2f\n\n", st.Codes.Revenue))
	sb.WriteString(fmt.Sprintf("📢 启用频道: %d\n", st.ActiveChannels))
	return sb.String()
}
