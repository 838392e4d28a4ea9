package service

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/database/models"
	"github.com/channelpass/channelpass/internal/database/repository"
	"github.com/channelpass/channelpass/pkg/logger"
	"github.com/channelpass/channelpass/pkg/utils"
)

const channelCacheTTL = 2 * time.Minute

// ChannelService 频道管理
type ChannelService struct {
	repo *repository.ChannelRepository
	main config.ChannelConfig
}

// NewChannelService 创建频道服务
func NewChannelService(db *gorm.DB, cfg *config.Config) *ChannelService {
	return &ChannelService{
		repo: repository.NewChannelRepository(db),
		main: cfg.MainChannel,
	}
}

// Add 添加频道，已存在时更新名称并重新启用
func (s *ChannelService) Add(rawID, username, name string, addedBy int64) (*models.Channel, error) {
	id, ok := models.NormalizeChannelID(rawID)
	if !ok {
		return nil, ErrInvalidChannelID
	}

	username = strings.TrimSpace(username)
	if username != "" && !strings.HasPrefix(username, "@") {
		username = "@" + username
	}
	if username == "" && strings.HasPrefix(id, "@") {
		username = id
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = id
	}

	ch := &models.Channel{
		ChannelID:       id,
		ChannelUsername: username,
		ChannelName:     name,
		AddedBy:         addedBy,
		AddedAt:         time.Now().UTC(),
		IsActive:        true,
		ChannelType:     models.ChannelTypePremium,
	}
	if err := s.repo.Upsert(ch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	utils.CacheDelete(utils.KeyActiveChannels)

	logger.Info().Str("channel_id", id).Str("name", name).Int64("added_by", addedBy).Msg("添加频道")
	return s.repo.GetByChannelID(id)
}

// Toggle 切换频道启用状态，主频道不能停用，返回新状态
func (s *ChannelService) Toggle(rawID string) (bool, error) {
	id, ok := models.NormalizeChannelID(rawID)
	if !ok {
		return false, ErrInvalidChannelID
	}
	ch, err := s.repo.GetByChannelID(id)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, ErrChannelNotFound
		}
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if ch.IsActive && ch.IsMainChannel {
		return true, ErrMainChannelLocked
	}

	active := !ch.IsActive
	if _, err := s.repo.SetActive(id, active); err != nil {
		return ch.IsActive, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	utils.CacheDelete(utils.KeyActiveChannels)

	logger.Info().Str("channel_id", id).Bool("active", active).Msg("切换频道状态")
	return active, nil
}

// List 全部频道，主频道在前
func (s *ChannelService) List() ([]models.Channel, error) {
	return s.repo.ListAll()
}

// Active 启用的频道（含主频道），带缓存
func (s *ChannelService) Active() ([]models.Channel, error) {
	return utils.Load(utils.KeyActiveChannels, channelCacheTTL, s.repo.ListActive)
}

// Main 主频道，数据库中没有时使用配置
func (s *ChannelService) Main() *models.Channel {
	if ch, err := s.repo.GetMain(); err == nil {
		return ch
	}
	id, _ := models.NormalizeChannelID(s.main.ID)
	return &models.Channel{
		ChannelID:       id,
		ChannelUsername: s.main.Username,
		ChannelName:     s.main.Name,
		IsActive:        true,
		IsMainChannel:   true,
	}
}
