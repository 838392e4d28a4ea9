// Package repository 订阅码数据仓库
package repository

import (
	"errors"

	"github.com/channelpass/channelpass/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CodeRepository 订阅码仓库
type CodeRepository struct {
	db *gorm.DB
}

// NewCodeRepository 创建订阅码仓库
func NewCodeRepository(db *gorm.DB) *CodeRepository {
	return &CodeRepository{db: db}
}

// WithTx 绑定到事务
func (r *CodeRepository) WithTx(tx *gorm.DB) *CodeRepository {
	return &CodeRepository{db: tx}
}

// Create 创建订阅码
func (r *CodeRepository) Create(code *models.Code) error {
	return r.db.Create(code).Error
}

// BatchCreate 批量创建订阅码
func (r *CodeRepository) BatchCreate(codes []models.Code) error {
	if len(codes) == 0 {
		return nil
	}
	return r.db.CreateInBatches(codes, 100).Error
}

// GetByCode 根据订阅码获取
func (r *CodeRepository) GetByCode(code string) (*models.Code, error) {
	var c models.Code
	err := r.db.Where("code = ?", code).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByCodeForUpdate 加行锁读取，需在事务中调用（SQLite 会忽略锁子句）
func (r *CodeRepository) GetByCodeForUpdate(code string) (*models.Code, error) {
	var c models.Code
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Exists 订阅码是否已存在
func (r *CodeRepository) Exists(code string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Code{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

// RecordUse 写回一次兑换后的使用计数
func (r *CodeRepository) RecordUse(code *models.Code) error {
	return r.db.Model(&models.Code{}).Where("id = ?", code.ID).Updates(map[string]interface{}{
		"current_uses": code.CurrentUses,
		"is_used":      code.IsUsed,
		"used_by":      code.UsedBy,
		"used_at":      code.UsedAt,
	}).Error
}

// MarkExhausted 将计数已满但未标记的订阅码标记为已使用
func (r *CodeRepository) MarkExhausted(id uint) error {
	return r.db.Model(&models.Code{}).Where("id = ?", id).Update("is_used", true).Error
}

// ListAvailable 分页获取可用的非试用订阅码
func (r *CodeRepository) ListAvailable(limit, offset int) ([]models.Code, int64, error) {
	var codes []models.Code
	var total int64

	query := r.db.Model(&models.Code{}).
		Where("is_active = ? AND is_used = ? AND is_trial = ?", true, false, false)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&codes).Error
	return codes, total, err
}

// ListByBatch 获取某批次的订阅码
func (r *CodeRepository) ListByBatch(batchID string) ([]models.Code, error) {
	var codes []models.Code
	err := r.db.Where("batch_id = ?", batchID).Order("id ASC").Find(&codes).Error
	return codes, err
}

// CodeStats 订阅码统计
type CodeStats struct {
	Total     int64   // 非试用总数
	Available int64   // 可用
	Used      int64   // 已用尽
	Trials    int64   // 试用记录
	Revenue   float64 // 已用尽订阅码的价格合计
}

// CountStats 统计订阅码
func (r *CodeRepository) CountStats() (*CodeStats, error) {
	stats := &CodeStats{}

	if err := r.db.Model(&models.Code{}).Where("is_trial = ?", false).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.Code{}).
		Where("is_active = ? AND is_used = ? AND is_trial = ?", true, false, false).
		Count(&stats.Available).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.Code{}).
		Where("is_used = ? AND is_trial = ?", true, false).
		Count(&stats.Used).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.Code{}).Where("is_trial = ?", true).Count(&stats.Trials).Error; err != nil {
		return nil, err
	}

	var revenue struct{ Total float64 }
	if err := r.db.Model(&models.Code{}).
		Select("COALESCE(SUM(price), 0) AS total").
		Where("is_used = ? AND is_trial = ?", true, false).
		Scan(&revenue).Error; err != nil {
		return nil, err
	}
	stats.Revenue = revenue.Total

	return stats, nil
}

// IsNotFound 是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
