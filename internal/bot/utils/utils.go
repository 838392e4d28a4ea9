// Package utils Bot 工具函数
package utils

import (
	tele "gopkg.in/telebot.v3"

	"github.com/channelpass/channelpass/internal/service"
	"github.com/channelpass/channelpass/pkg/logger"
)

// UserInfo 从消息发送者提取用户资料
func UserInfo(u *tele.User) service.UserInfo {
	if u == nil {
		return service.UserInfo{}
	}
	return service.UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// Progress 发送处理中提示，返回的函数删除该提示
func Progress(c tele.Context, text string) func() {
	msg, err := c.Bot().Send(c.Chat(), text)
	if err != nil {
		logger.Debug().Err(err).Msg("发送处理中提示失败")
		return func() {}
	}
	return func() {
		if err := c.Bot().Delete(msg); err != nil {
			logger.Debug().Err(err).Msg("删除处理中提示失败")
		}
	}
}

// DeleteOriginalMessage 删除包含订阅码的原消息，群组里没有删除权限时忽略
func DeleteOriginalMessage(c tele.Context) {
	msg := c.Message()
	if msg == nil || c.Callback() != nil {
		return
	}
	go func() {
		if err := c.Bot().Delete(msg); err != nil {
			logger.Debug().Err(err).Int64("chat_id", msg.Chat.ID).Msg("删除订阅码消息失败")
		}
	}()
}
