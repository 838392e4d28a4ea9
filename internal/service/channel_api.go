package service

import (
	"context"
	"time"
)

// ChannelAPI 聊天平台的频道操作，调用可能失败或超时
type ChannelAPI interface {
	// CreateInviteLink 创建限定人数和到期时间的邀请链接
	CreateInviteLink(ctx context.Context, channelID string, expireAt time.Time, memberLimit int) (string, error)
	// RemoveMember 将用户移出频道，之后仍可通过新的邀请链接加入
	RemoveMember(ctx context.Context, channelID string, userID int64) error
	// SendMessage 给用户发送私聊消息
	SendMessage(ctx context.Context, userID int64, text string) error
}
