package service

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/database/models"
	"github.com/channelpass/channelpass/internal/database/repository"
	"github.com/channelpass/channelpass/pkg/logger"
	"github.com/channelpass/channelpass/pkg/utils"
)

const adminCacheTTL = 5 * time.Minute

// AdminService 管理员管理
type AdminService struct {
	repo  *repository.AdminRepository
	owner int64
}

// NewAdminService 创建管理员服务
func NewAdminService(db *gorm.DB, cfg *config.Config) *AdminService {
	return &AdminService{
		repo:  repository.NewAdminRepository(db),
		owner: cfg.Owner,
	}
}

// IsAdmin 是否为管理员，结果缓存 5 分钟
func (s *AdminService) IsAdmin(userID int64) bool {
	if s.owner != 0 && userID == s.owner {
		return true
	}
	ok, err := utils.Load(utils.AdminKey(userID), adminCacheTTL, func() (bool, error) {
		return s.repo.IsActiveAdmin(userID)
	})
	if err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Msg("查询管理员失败")
		return false
	}
	return ok
}

// IsOwner 是否为机器人所有者
func (s *AdminService) IsOwner(userID int64) bool {
	return s.owner != 0 && userID == s.owner
}

// Add 添加或重新启用管理员
func (s *AdminService) Add(userID, addedBy int64, username string) error {
	if userID <= 0 {
		return fmt.Errorf("%w: 无效的用户 ID", ErrInvalidArgument)
	}
	admin := &models.Admin{
		UserID:   userID,
		Username: username,
		AddedBy:  addedBy,
	}
	if err := s.repo.Activate(admin); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	utils.CacheDelete(utils.AdminKey(userID))

	logger.Info().Int64("user_id", userID).Int64("added_by", addedBy).Msg("添加管理员")
	return nil
}

// Remove 停用管理员，所有者不可移除
func (s *AdminService) Remove(userID, removedBy int64) error {
	if s.IsOwner(userID) {
		return ErrOwnerProtected
	}
	ok, err := s.repo.Deactivate(userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	utils.CacheDelete(utils.AdminKey(userID))
	if !ok {
		return ErrAdminNotFound
	}

	logger.Info().Int64("user_id", userID).Int64("removed_by", removedBy).Msg("移除管理员")
	return nil
}

// List 获取全部有效管理员
func (s *AdminService) List() ([]models.Admin, error) {
	admins, err := s.repo.ListActive()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return admins, nil
}
