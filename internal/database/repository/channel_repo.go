// Package repository 频道数据仓库
package repository

import (
	"github.com/channelpass/channelpass/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChannelRepository 频道仓库
type ChannelRepository struct {
	db *gorm.DB
}

// NewChannelRepository 创建频道仓库
func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// WithTx 绑定到事务
func (r *ChannelRepository) WithTx(tx *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: tx}
}

// GetByChannelID 根据频道 ID 获取
func (r *ChannelRepository) GetByChannelID(channelID string) (*models.Channel, error) {
	var c models.Channel
	err := r.db.Where("channel_id = ?", channelID).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetMain 获取主频道
func (r *ChannelRepository) GetMain() (*models.Channel, error) {
	var c models.Channel
	err := r.db.Where("is_main_channel = ?", true).Order("id ASC").First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListActive 获取所有启用的频道（含主频道）
func (r *ChannelRepository) ListActive() ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.Where("is_active = ?", true).Order("id ASC").Find(&channels).Error
	return channels, err
}

// ListSecondaryActive 获取启用的非主频道
func (r *ChannelRepository) ListSecondaryActive() ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.Where("is_active = ? AND is_main_channel = ?", true, false).
		Order("id ASC").
		Find(&channels).Error
	return channels, err
}

// ListAll 获取全部频道
func (r *ChannelRepository) ListAll() ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.Order("is_main_channel DESC, id ASC").Find(&channels).Error
	return channels, err
}

// Upsert 新增频道，已存在时更新名称并重新启用
func (r *ChannelRepository) Upsert(c *models.Channel) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"channel_username", "channel_name", "is_active"}),
	}).Create(c).Error
}

// SetActive 设置启用状态，返回是否找到频道
func (r *ChannelRepository) SetActive(channelID string, active bool) (bool, error) {
	result := r.db.Model(&models.Channel{}).
		Where("channel_id = ?", channelID).
		Update("is_active", active)
	return result.RowsAffected > 0, result.Error
}

// CountActive 启用的频道数量
func (r *ChannelRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&models.Channel{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}
