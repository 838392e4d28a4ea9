package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/channelpass/channelpass/internal/service"
	"github.com/channelpass/channelpass/pkg/utils"
)

const chatCacheTTL = time.Hour

// TelegramAPI 基于 Bot 的频道操作
type TelegramAPI struct {
	bot *tele.Bot
}

var _ service.ChannelAPI = (*TelegramAPI)(nil)

// NewTelegramAPI 创建频道操作客户端
func NewTelegramAPI(b *tele.Bot) *TelegramAPI {
	return &TelegramAPI{bot: b}
}

// CreateInviteLink 创建一次性邀请链接
func (a *TelegramAPI) CreateInviteLink(ctx context.Context, channelID string, expireAt time.Time, memberLimit int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	chat, err := a.resolveChat(channelID)
	if err != nil {
		return "", err
	}

	link, err := a.bot.CreateInviteLink(chat, &tele.ChatInviteLink{
		ExpireUnixtime: expireAt.Unix(),
		MemberLimit:    memberLimit,
	})
	if err != nil {
		return "", fmt.Errorf("%w: 创建邀请链接 %s: %v", service.ErrChannelAPI, channelID, err)
	}
	return link.InviteLink, nil
}

// RemoveMember 移出频道后立即解封，用户之后可凭新链接重新加入
func (a *TelegramAPI) RemoveMember(ctx context.Context, channelID string, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chat, err := a.resolveChat(channelID)
	if err != nil {
		return err
	}

	user := &tele.User{ID: userID}
	if err := a.bot.Ban(chat, &tele.ChatMember{User: user}); err != nil {
		return fmt.Errorf("%w: 移出 %d (%s): %v", service.ErrChannelAPI, userID, channelID, err)
	}
	if err := a.bot.Unban(chat, user, true); err != nil {
		return fmt.Errorf("%w: 解封 %d (%s): %v", service.ErrChannelAPI, userID, channelID, err)
	}
	return nil
}

// SendMessage 发送私聊消息
func (a *TelegramAPI) SendMessage(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.bot.Send(&tele.User{ID: userID}, text, tele.NoPreview); err != nil {
		return fmt.Errorf("%w: 发送消息给 %d: %v", service.ErrChannelAPI, userID, err)
	}
	return nil
}

// resolveChat 数字 ID 直接使用，@用户名 通过接口解析并缓存
func (a *TelegramAPI) resolveChat(channelID string) (*tele.Chat, error) {
	if !strings.HasPrefix(channelID, "@") {
		id, err := strconv.ParseInt(channelID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", service.ErrInvalidChannelID, channelID)
		}
		return &tele.Chat{ID: id}, nil
	}

	chat, err := utils.Load(utils.ChatKey(channelID), chatCacheTTL, func() (*tele.Chat, error) {
		return a.bot.ChatByUsername(channelID)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: 解析频道 %s: %v", service.ErrChannelAPI, channelID, err)
	}
	return chat, nil
}
