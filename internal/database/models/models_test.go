// Package models 数据模型测试
package models

import (
	"testing"
	"time"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestCode_RedeemableAt(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		code     Code
		expected bool
	}{
		{"正常可用", Code{IsActive: true, MaxUses: 1}, true},
		{"未设置有效期", Code{IsActive: true, MaxUses: 3, CurrentUses: 2}, true},
		{"未激活", Code{IsActive: false, MaxUses: 1}, false},
		{"已标记使用", Code{IsActive: true, IsUsed: true, MaxUses: 5}, false},
		{"次数用尽但未标记", Code{IsActive: true, MaxUses: 2, CurrentUses: 2}, false},
		{"已过期", Code{IsActive: true, MaxUses: 1, ExpiresAt: timePtr(now.Add(-time.Minute))}, false},
		{"恰好到期", Code{IsActive: true, MaxUses: 1, ExpiresAt: timePtr(now)}, false},
		{"未来过期", Code{IsActive: true, MaxUses: 1, ExpiresAt: timePtr(now.Add(time.Hour))}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.code.RedeemableAt(now); got != tt.expected {
				t.Errorf("RedeemableAt() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCode_RemainingUses(t *testing.T) {
	c := Code{MaxUses: 3, CurrentUses: 1}
	if got := c.RemainingUses(); got != 2 {
		t.Errorf("RemainingUses() = %d, want 2", got)
	}
	c.CurrentUses = 5
	if got := c.RemainingUses(); got != 0 {
		t.Errorf("RemainingUses() = %d, want 0", got)
	}
}

func TestSubscriber_TrialConsumed(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		sub      Subscriber
		expected bool
	}{
		{"已标记试用", Subscriber{TrialUsed: true, ExpiresAt: now.Add(time.Hour)}, true},
		{"试用中", Subscriber{IsTrial: true, IsActive: true, ExpiresAt: now.Add(time.Hour)}, false},
		{"试用已过期未清理", Subscriber{IsTrial: true, IsActive: true, ExpiresAt: now.Add(-time.Hour)}, true},
		{"付费订阅过期", Subscriber{ExpiresAt: now.Add(-time.Hour)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.TrialConsumed(now); got != tt.expected {
				t.Errorf("TrialConsumed() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSubscriber_DaysLeft(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := Subscriber{ExpiresAt: now.Add(30*24*time.Hour + time.Hour)}
	if got := s.DaysLeft(now); got != 30 {
		t.Errorf("DaysLeft() = %d, want 30", got)
	}
	s.ExpiresAt = now.Add(-time.Hour)
	if got := s.DaysLeft(now); got != 0 {
		t.Errorf("DaysLeft() = %d, want 0", got)
	}
}

func TestNormalizeChannelID(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"用户名", "@mychannel", "@mychannel", true},
		{"完整 ID", "-1001234567890", "-1001234567890", true},
		{"纯数字", "1234567890", "-1001234567890", true},
		{"带空格", "  1234 ", "-1001234", true},
		{"只有 @", "@", "@", false},
		{"非法字符", "abc", "", false},
		{"-100 后非数字", "-100abc", "-100abc", false},
		{"空字符串", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeChannelID(tt.input)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("NormalizeChannelID(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestChannel_PublicURL(t *testing.T) {
	tests := []struct {
		name     string
		username string
		expected string
	}{
		{"带 @", "@news", "https://t.me/news"},
		{"不带 @", "news", "https://t.me/news"},
		{"无用户名", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Channel{ChannelUsername: tt.username}
			if got := c.PublicURL(); got != tt.expected {
				t.Errorf("PublicURL() = %q, want %q", got, tt.expected)
			}
		})
	}
}
