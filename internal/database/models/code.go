// Package models 数据模型 - 订阅码
package models

import (
	"time"

	"gorm.io/datatypes"
)

// Code 订阅码表
type Code struct {
	ID           uint       `gorm:"column:id;primaryKey" json:"id"`
	Code         string     `gorm:"column:code;uniqueIndex;size:64;not null" json:"code"`
	DurationDays int        `gorm:"column:duration_days;not null" json:"duration_days"`
	Price        float64    `gorm:"column:price" json:"price"`
	IsUsed       bool       `gorm:"column:is_used" json:"is_used"`
	UsedBy       *int64     `gorm:"column:used_by;index" json:"used_by,omitempty"` // 最近一次使用者
	UsedAt       *time.Time `gorm:"column:used_at" json:"used_at,omitempty"`
	CreatedBy    int64      `gorm:"column:created_by" json:"created_by"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	ExpiresAt    *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"` // 订阅码本身的有效期
	BatchID      string     `gorm:"column:batch_id;size:64;index" json:"batch_id,omitempty"`

	Channels           datatypes.JSONSlice[string] `gorm:"column:channels" json:"channels"`
	ExcludedChannels   datatypes.JSONSlice[string] `gorm:"column:excluded_channels" json:"excluded_channels"`
	ApplyToAllChannels bool                        `gorm:"column:apply_to_all_channels" json:"apply_to_all_channels"`

	MaxUses     int  `gorm:"column:max_uses" json:"max_uses"`
	CurrentUses int  `gorm:"column:current_uses" json:"current_uses"`
	IsActive    bool `gorm:"column:is_active" json:"is_active"`
	IsTrial     bool `gorm:"column:is_trial;index" json:"is_trial"`
}

// TableName 表名
func (Code) TableName() string {
	return "codes"
}

// IsExpiredAt 订阅码本身在 now 时是否已过期，未设置有效期视为永不过期
func (c *Code) IsExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// IsExhausted 使用次数是否已用尽
func (c *Code) IsExhausted() bool {
	return c.IsUsed || c.CurrentUses >= c.MaxUses
}

// RedeemableAt 是否可兑换
func (c *Code) RedeemableAt(now time.Time) bool {
	return c.IsActive && !c.IsExhausted() && !c.IsExpiredAt(now)
}

// RemainingUses 剩余次数
func (c *Code) RemainingUses() int {
	if n := c.MaxUses - c.CurrentUses; n > 0 {
		return n
	}
	return 0
}
