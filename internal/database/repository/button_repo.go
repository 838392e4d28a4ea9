// Package repository 自定义按钮数据仓库
package repository

import (
	"github.com/channelpass/channelpass/internal/database/models"
	"gorm.io/gorm"
)

// ButtonRepository 自定义按钮仓库
type ButtonRepository struct {
	db *gorm.DB
}

// NewButtonRepository 创建按钮仓库
func NewButtonRepository(db *gorm.DB) *ButtonRepository {
	return &ButtonRepository{db: db}
}

// Create 创建按钮
func (r *ButtonRepository) Create(b *models.DynamicButton) error {
	return r.db.Create(b).Error
}

// GetByCommand 根据命令获取
func (r *ButtonRepository) GetByCommand(command string) (*models.DynamicButton, error) {
	var b models.DynamicButton
	err := r.db.Where("button_command = ?", command).First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListAll 获取全部按钮
func (r *ButtonRepository) ListAll() ([]models.DynamicButton, error) {
	var buttons []models.DynamicButton
	err := r.db.Order("id ASC").Find(&buttons).Error
	return buttons, err
}

// ListActive 获取启用的按钮
func (r *ButtonRepository) ListActive() ([]models.DynamicButton, error) {
	var buttons []models.DynamicButton
	err := r.db.Where("is_active = ?", true).Order("id ASC").Find(&buttons).Error
	return buttons, err
}

// Update 更新按钮字段，返回是否找到按钮
func (r *ButtonRepository) Update(command string, fields map[string]interface{}) (bool, error) {
	result := r.db.Model(&models.DynamicButton{}).
		Where("button_command = ?", command).
		Updates(fields)
	return result.RowsAffected > 0, result.Error
}

// Delete 删除按钮
func (r *ButtonRepository) Delete(command string) (bool, error) {
	result := r.db.Where("button_command = ?", command).Delete(&models.DynamicButton{})
	return result.RowsAffected > 0, result.Error
}
