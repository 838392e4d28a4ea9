package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/channelpass/channelpass/internal/database/models"
	"github.com/channelpass/channelpass/internal/database/repository"
	"github.com/channelpass/channelpass/pkg/logger"
	"github.com/channelpass/channelpass/pkg/utils"
)

var buttonCommand = regexp.MustCompile(`^[a-z0-9_]+$`)

// ReservedCommands 内置命令，自定义按钮不能占用
var ReservedCommands = map[string]bool{
	"start": true, "help": true, "use": true, "mysubscription": true, "channels": true,
	"trial": true, "mainchannel": true, "admin": true, "createcode": true, "createbatch": true,
	"createmultiple": true, "codes": true, "subscribers": true, "stats": true, "addadmin": true,
	"removeadmin": true, "admins": true, "addchannel": true, "channelslist": true,
	"togglechannel": true, "checkexpired": true, "checktrials": true, "sendnotifications": true,
	"buttons": true, "addbutton": true, "deletebutton": true, "editbutton": true,
	"togglebutton": true, "cancel": true, "backup": true,
}

// ButtonService 自定义按钮管理
type ButtonService struct {
	repo *repository.ButtonRepository
}

// NewButtonService 创建按钮服务
func NewButtonService(db *gorm.DB) *ButtonService {
	return &ButtonService{repo: repository.NewButtonRepository(db)}
}

// NormalizeCommand 去掉前导斜杠并转小写，校验格式
func NormalizeCommand(raw string) (string, error) {
	cmd := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "/"))
	if !buttonCommand.MatchString(cmd) {
		return "", ErrInvalidCommand
	}
	if ReservedCommands[cmd] {
		return "", ErrReservedCommand
	}
	return cmd, nil
}

// Create 新建按钮
func (s *ButtonService) Create(text, rawCommand, response string, createdBy int64) (*models.DynamicButton, error) {
	text, response = strings.TrimSpace(text), strings.TrimSpace(response)
	if text == "" || response == "" {
		return nil, ErrInvalidButtonFields
	}
	cmd, err := NormalizeCommand(rawCommand)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByCommand(cmd); err == nil {
		return nil, ErrButtonExists
	} else if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	b := &models.DynamicButton{
		ButtonText:     text,
		ButtonCommand:  cmd,
		ButtonResponse: response,
		IsActive:       true,
		CreatedBy:      createdBy,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	utils.CacheDelete(utils.KeyActiveButtons)

	logger.Info().Str("command", cmd).Int64("created_by", createdBy).Msg("添加自定义按钮")
	return b, nil
}

// Get 按命令获取按钮
func (s *ButtonService) Get(rawCommand string) (*models.DynamicButton, error) {
	cmd := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(rawCommand), "/"))
	b, err := s.repo.GetByCommand(cmd)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrButtonNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return b, nil
}

// Lookup 查找启用中的按钮，用于响应 /<command>
func (s *ButtonService) Lookup(command string) (*models.DynamicButton, bool) {
	buttons, err := s.Active()
	if err != nil {
		return nil, false
	}
	for i := range buttons {
		if buttons[i].ButtonCommand == command {
			return &buttons[i], true
		}
	}
	return nil, false
}

// List 全部按钮
func (s *ButtonService) List() ([]models.DynamicButton, error) {
	return s.repo.ListAll()
}

// Active 启用中的按钮，带缓存
func (s *ButtonService) Active() ([]models.DynamicButton, error) {
	return utils.Load(utils.KeyActiveButtons, channelCacheTTL, s.repo.ListActive)
}

// Edit 修改按钮文字或回复，空字符串表示不修改
func (s *ButtonService) Edit(rawCommand, text, response string) error {
	fields := map[string]interface{}{}
	if t := strings.TrimSpace(text); t != "" {
		fields["button_text"] = t
	}
	if r := strings.TrimSpace(response); r != "" {
		fields["button_response"] = r
	}
	if len(fields) == 0 {
		return ErrInvalidButtonFields
	}
	return s.update(rawCommand, fields)
}

// Toggle 切换按钮启用状态，返回新状态
func (s *ButtonService) Toggle(rawCommand string) (bool, error) {
	b, err := s.Get(rawCommand)
	if err != nil {
		return false, err
	}
	active := !b.IsActive
	if err := s.update(b.ButtonCommand, map[string]interface{}{"is_active": active}); err != nil {
		return b.IsActive, err
	}
	return active, nil
}

// Delete 删除按钮
func (s *ButtonService) Delete(rawCommand string) error {
	cmd := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(rawCommand), "/"))
	ok, err := s.repo.Delete(cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return ErrButtonNotFound
	}
	utils.CacheDelete(utils.KeyActiveButtons)

	logger.Info().Str("command", cmd).Msg("删除自定义按钮")
	return nil
}

func (s *ButtonService) update(rawCommand string, fields map[string]interface{}) error {
	cmd := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(rawCommand), "/"))
	ok, err := s.repo.Update(cmd, fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return ErrButtonNotFound
	}
	utils.CacheDelete(utils.KeyActiveButtons)
	return nil
}
