// Package repository 管理员数据仓库
package repository

import (
	"time"

	"github.com/channelpass/channelpass/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdminRepository 管理员仓库
type AdminRepository struct {
	db *gorm.DB
}

// NewAdminRepository 创建管理员仓库
func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// GetByUserID 根据用户 ID 获取
func (r *AdminRepository) GetByUserID(userID int64) (*models.Admin, error) {
	var a models.Admin
	err := r.db.Where("user_id = ?", userID).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// IsActiveAdmin 是否为有效管理员
func (r *AdminRepository) IsActiveAdmin(userID int64) (bool, error) {
	var count int64
	err := r.db.Model(&models.Admin{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	return count > 0, err
}

// Activate 新增管理员，已存在时重新启用
func (r *AdminRepository) Activate(admin *models.Admin) error {
	if admin.AddedAt.IsZero() {
		admin.AddedAt = time.Now().UTC()
	}
	if admin.Permissions == "" {
		admin.Permissions = models.PermissionAll
	}
	admin.IsActive = true
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_active", "added_by", "added_at", "permissions"}),
	}).Create(admin).Error
}

// Deactivate 软删除管理员，返回是否实际更新
func (r *AdminRepository) Deactivate(userID int64) (bool, error) {
	result := r.db.Model(&models.Admin{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false)
	return result.RowsAffected > 0, result.Error
}

// ListActive 获取全部有效管理员
func (r *AdminRepository) ListActive() ([]models.Admin, error) {
	var admins []models.Admin
	err := r.db.Where("is_active = ?", true).Order("added_at ASC").Find(&admins).Error
	return admins, err
}
