// Package models 数据模型 - 频道与管理员
package models

import (
	"strings"
	"time"
)

// ChannelTypePremium 付费频道
const ChannelTypePremium = "premium"

// Channel 频道表
type Channel struct {
	ID                  uint      `gorm:"column:id;primaryKey" json:"id"`
	ChannelID           string    `gorm:"column:channel_id;uniqueIndex;size:128;not null" json:"channel_id"`
	ChannelUsername     string    `gorm:"column:channel_username;size:128" json:"channel_username,omitempty"`
	ChannelName         string    `gorm:"column:channel_name;size:255" json:"channel_name"`
	AddedBy             int64     `gorm:"column:added_by" json:"added_by"`
	AddedAt             time.Time `gorm:"column:added_at" json:"added_at"`
	IsActive            bool      `gorm:"column:is_active;index" json:"is_active"`
	ChannelType         string    `gorm:"column:channel_type;size:32" json:"channel_type"`
	RequireSubscription bool      `gorm:"column:require_subscription" json:"require_subscription"`
	IsMainChannel       bool      `gorm:"column:is_main_channel" json:"is_main_channel"`
}

// TableName 表名
func (Channel) TableName() string {
	return "channels"
}

// Handle 去掉 @ 的公开用户名
func (c *Channel) Handle() string {
	return strings.TrimPrefix(c.ChannelUsername, "@")
}

// PublicURL 公开频道地址，无用户名时返回空
func (c *Channel) PublicURL() string {
	return PublicChannelURL(c.ChannelUsername)
}

// DisplayName 展示名称
func (c *Channel) DisplayName() string {
	if c.ChannelName != "" {
		return c.ChannelName
	}
	if h := c.Handle(); h != "" {
		return "@" + h
	}
	return c.ChannelID
}

// PublicChannelURL 根据用户名拼接 t.me 地址
func PublicChannelURL(username string) string {
	handle := strings.TrimPrefix(strings.TrimSpace(username), "@")
	if handle == "" {
		return ""
	}
	return "https://t.me/" + handle
}

// NormalizeChannelID 规范化频道 ID：@username 和 -100 开头的保持不变，纯数字补全 -100 前缀
func NormalizeChannelID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	switch {
	case id == "":
		return "", false
	case strings.HasPrefix(id, "@"):
		return id, len(id) > 1
	case strings.HasPrefix(id, "-100"):
		return id, isDigits(id[4:])
	case isDigits(id):
		return "-100" + id, true
	}
	return "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// PermissionAll 全部权限
const PermissionAll = "all"

// Admin 管理员表
type Admin struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	UserID      int64     `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	Username    string    `gorm:"column:username;size:255" json:"username,omitempty"`
	FirstName   string    `gorm:"column:first_name;size:255" json:"first_name,omitempty"`
	LastName    string    `gorm:"column:last_name;size:255" json:"last_name,omitempty"`
	AddedBy     int64     `gorm:"column:added_by" json:"added_by"`
	AddedAt     time.Time `gorm:"column:added_at" json:"added_at"`
	Permissions string    `gorm:"column:permissions;size:64" json:"permissions"`
	IsActive    bool      `gorm:"column:is_active;index" json:"is_active"`
}

// TableName 表名
func (Admin) TableName() string {
	return "admins"
}

// DynamicButton 自定义按钮表
type DynamicButton struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	ButtonText     string    `gorm:"column:button_text;size:255;not null" json:"button_text"`
	ButtonCommand  string    `gorm:"column:button_command;uniqueIndex;size:64;not null" json:"button_command"`
	ButtonResponse string    `gorm:"column:button_response;type:text" json:"button_response"`
	IsActive       bool      `gorm:"column:is_active" json:"is_active"`
	CreatedBy      int64     `gorm:"column:created_by" json:"created_by"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName 表名
func (DynamicButton) TableName() string {
	return "dynamic_buttons"
}
