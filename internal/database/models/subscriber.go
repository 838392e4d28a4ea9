// Package models 数据模型 - 订阅者
package models

import (
	"time"

	"gorm.io/datatypes"
)

// InviteLink 发放给订阅者的频道邀请链接
type InviteLink struct {
	ChannelID       string `json:"channel_id"`
	ChannelName     string `json:"channel_name"`
	ChannelUsername string `json:"channel_username,omitempty"`
	InviteLink      string `json:"invite_link"`
	// Fallback 表示创建邀请链接失败后使用的公开地址
	Fallback bool `json:"fallback,omitempty"`
}

// Subscriber 订阅者表，每个用户仅一行
type Subscriber struct {
	ID           uint      `gorm:"column:id;primaryKey" json:"id"`
	UserID       int64     `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	Username     string    `gorm:"column:username;size:255" json:"username,omitempty"`
	FirstName    string    `gorm:"column:first_name;size:255" json:"first_name,omitempty"`
	LastName     string    `gorm:"column:last_name;size:255" json:"last_name,omitempty"`
	CodeUsed     string    `gorm:"column:code_used;size:64" json:"code_used"`
	SubscribedAt time.Time `gorm:"column:subscribed_at" json:"subscribed_at"`
	ExpiresAt    time.Time `gorm:"column:expires_at;index" json:"expires_at"`
	IsActive     bool      `gorm:"column:is_active;index" json:"is_active"`

	Channels           datatypes.JSONSlice[string]     `gorm:"column:channels" json:"channels"`
	ExcludedChannels   datatypes.JSONSlice[string]     `gorm:"column:excluded_channels" json:"excluded_channels"`
	ApplyToAllChannels bool                            `gorm:"column:apply_to_all_channels" json:"apply_to_all_channels"`
	InviteLinks        datatypes.JSONSlice[InviteLink] `gorm:"column:invite_links" json:"invite_links"`

	LastNotification *time.Time `gorm:"column:last_notification" json:"last_notification,omitempty"`
	IsTrial          bool       `gorm:"column:is_trial" json:"is_trial"`
	TrialUsed        bool       `gorm:"column:trial_used" json:"trial_used"`
}

// TableName 表名
func (Subscriber) TableName() string {
	return "subscribers"
}

// IsExpiredAt 在 now 时是否已过期
func (s *Subscriber) IsExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// HasActiveSubscription 是否存在有效订阅
func (s *Subscriber) HasActiveSubscription(now time.Time) bool {
	return s.IsActive && !s.IsExpiredAt(now)
}

// TrialConsumed 试用是否已经用过，包括尚未被清理的过期试用
func (s *Subscriber) TrialConsumed(now time.Time) bool {
	return s.TrialUsed || (s.IsTrial && s.IsExpiredAt(now))
}

// DaysLeft 剩余天数，向下取整
func (s *Subscriber) DaysLeft(now time.Time) int {
	if s.IsExpiredAt(now) {
		return 0
	}
	return int(s.ExpiresAt.Sub(now).Hours() / 24)
}

// DisplayName 展示名称
func (s *Subscriber) DisplayName() string {
	if s.Username != "" {
		return "@" + s.Username
	}
	if s.FirstName != "" {
		return s.FirstName
	}
	return "未知"
}
