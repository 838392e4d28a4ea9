// Package repository 订阅者数据仓库
package repository

import (
	"time"

	"github.com/channelpass/channelpass/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriberRepository 订阅者仓库
type SubscriberRepository struct {
	db *gorm.DB
}

// NewSubscriberRepository 创建订阅者仓库
func NewSubscriberRepository(db *gorm.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// WithTx 绑定到事务
func (r *SubscriberRepository) WithTx(tx *gorm.DB) *SubscriberRepository {
	return &SubscriberRepository{db: tx}
}

// GetByUserID 根据用户 ID 获取
func (r *SubscriberRepository) GetByUserID(userID int64) (*models.Subscriber, error) {
	var s models.Subscriber
	err := r.db.Where("user_id = ?", userID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByUserIDForUpdate 加行锁读取，需在事务中调用
func (r *SubscriberRepository) GetByUserIDForUpdate(userID int64) (*models.Subscriber, error) {
	var s models.Subscriber
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert 按 user_id 写入，存在时整行覆盖，传入的主键会被忽略
func (r *SubscriberRepository) Upsert(s *models.Subscriber) error {
	s.ID = 0
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(s).Error
}

// ListExpired 获取已过期但仍处于激活状态的订阅者
func (r *SubscriberRepository) ListExpired(now time.Time) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	err := r.db.Where("is_active = ? AND expires_at < ?", true, now).
		Order("expires_at ASC").
		Find(&subs).Error
	return subs, err
}

// ListExpiredTrials 获取已过期的试用订阅者
func (r *SubscriberRepository) ListExpiredTrials(now time.Time) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	err := r.db.Where("is_active = ? AND is_trial = ? AND expires_at < ?", true, true, now).
		Order("expires_at ASC").
		Find(&subs).Error
	return subs, err
}

// ListExpiring 获取 window 内即将到期且在 window 内未提醒过的订阅者
func (r *SubscriberRepository) ListExpiring(now time.Time, window time.Duration) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	err := r.db.Where("is_active = ? AND expires_at >= ? AND expires_at <= ?", true, now, now.Add(window)).
		Where("last_notification IS NULL OR last_notification < ?", now.Add(-window)).
		Order("expires_at ASC").
		Find(&subs).Error
	return subs, err
}

// Deactivate 条件停用：仅当仍激活且已过期时生效，返回是否实际更新
// trialsOnly 为 true 时只处理试用订阅；两种情况下试用行都会被标记 trial_used
func (r *SubscriberRepository) Deactivate(userID int64, now time.Time, trialsOnly bool) (bool, error) {
	query := r.db.Model(&models.Subscriber{}).
		Where("user_id = ? AND is_active = ? AND expires_at < ?", userID, true, now)

	updates := map[string]interface{}{
		"is_active":  false,
		"trial_used": gorm.Expr("CASE WHEN is_trial = ? THEN ? ELSE trial_used END", true, true),
	}
	if trialsOnly {
		query = query.Where("is_trial = ?", true)
		updates["trial_used"] = true
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TouchNotification 记录最近一次提醒时间
func (r *SubscriberRepository) TouchNotification(userID int64, at time.Time) error {
	return r.db.Model(&models.Subscriber{}).
		Where("user_id = ?", userID).
		Update("last_notification", at).Error
}

// ListActive 分页获取有效订阅者
func (r *SubscriberRepository) ListActive(now time.Time, limit, offset int) ([]models.Subscriber, int64, error) {
	var subs []models.Subscriber
	var total int64

	query := r.db.Model(&models.Subscriber{}).Where("is_active = ? AND expires_at > ?", true, now)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("expires_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&subs).Error
	return subs, total, err
}

// SubscriberStats 订阅者统计
type SubscriberStats struct {
	Active      int64
	ActiveTrial int64
	Inactive    int64
	Total       int64
}

// CountStats 统计订阅者
func (r *SubscriberRepository) CountStats(now time.Time) (*SubscriberStats, error) {
	stats := &SubscriberStats{}

	if err := r.db.Model(&models.Subscriber{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.Subscriber{}).
		Where("is_active = ? AND expires_at > ?", true, now).
		Count(&stats.Active).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.Subscriber{}).
		Where("is_active = ? AND is_trial = ? AND expires_at > ?", true, true, now).
		Count(&stats.ActiveTrial).Error; err != nil {
		return nil, err
	}
	stats.Inactive = stats.Total - stats.Active

	return stats, nil
}
