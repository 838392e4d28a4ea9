package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/channelpass/channelpass/internal/bot/keyboards"
	"github.com/channelpass/channelpass/internal/bot/utils"
	"github.com/channelpass/channelpass/internal/database/models"
	"github.com/channelpass/channelpass/internal/service"
	"github.com/channelpass/channelpass/pkg/logger"
)

const codesPageSize = 10

// parseCodeArgs 解析 <days> <price> [max_uses] [channels=a,b] [exclude=c]
func parseCodeArgs(args []string, allowMaxUses bool) (service.CodeSpec, error) {
	var spec service.CodeSpec
	var positional []string

	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "channels="):
			spec.Channels = splitList(strings.TrimPrefix(arg, "channels="))
		case strings.HasPrefix(arg, "exclude="):
			spec.ExcludedChannels = splitList(strings.TrimPrefix(arg, "exclude="))
		default:
			positional = append(positional, arg)
		}
	}

	maxPositional := 2
	if allowMaxUses {
		maxPositional = 3
	}
	if len(positional) < 2 || len(positional) > maxPositional {
		return spec, service.ErrInvalidArgument
	}

	days, err := strconv.Atoi(positional[0])
	if err != nil {
		return spec, fmt.Errorf("%w: 天数 %q", service.ErrInvalidArgument, positional[0])
	}
	price, err := strconv.ParseFloat(positional[1], 64)
	if err != nil {
		return spec, fmt.Errorf("%w: 价格 %q", service.ErrInvalidArgument, positional[1])
	}
	spec.DurationDays = days
	spec.Price = price

	if len(positional) == 3 {
		uses, err := strconv.Atoi(positional[2])
		if err != nil {
			return spec, fmt.Errorf("%w: 次数 %q", service.ErrInvalidArgument, positional[2])
		}
		spec.MaxUses = uses
	}
	return spec, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// CreateCode /createcode 命令处理器
func CreateCode(c tele.Context) error {
	spec, err := parseCodeArgs(c.Args(), true)
	if err != nil {
		return c.Send(
			"❌ 参数错误\n\n" +
				"用法: /createcode <天数> <价格> [次数] [channels=-100a,-100b] [exclude=-100c]\n" +
				"例如: /createcode 30 9.9 1",
		)
	}
	spec.CreatedBy = c.Sender().ID

	code, err := svc.Codes.CreateCode(spec)
	if err != nil {
		return c.Send(adminError("创建订阅码失败", err))
	}

	scope := "全部付费频道"
	if !code.ApplyToAllChannels {
		scope = strings.Join(code.Channels, ", ")
	}
	if len(code.ExcludedChannels) > 0 {
		scope += "（排除 " + strings.Join(code.ExcludedChannels, ", ") + "）"
	}

	text := fmt.Sprintf(
		"✅ 订阅码已创建\n\n"+
			"🎫 %s\n"+
			"⏰ 时长: %d 天\n"+
			"💰 价格: %.2f\n"+
			"🔢 可用次数: %d\n"+
			"📢 频道: %s\n"+
			"📅 有效期至: %s",
		code.Code, code.DurationDays, code.Price, code.MaxUses, scope,
		formatCodeExpiry(code),
	)
	return c.Send(text)
}

// CreateBatch /createbatch 命令处理器，单事务生成
func CreateBatch(c tele.Context) error {
	return createMany(c, "/createbatch", svc.Codes.CreateBatch)
}

// CreateMultiple /createmultiple 命令处理器，逐个生成并统计失败
func CreateMultiple(c tele.Context) error {
	return createMany(c, "/createmultiple", svc.Codes.CreateBulk)
}

func createMany(c tele.Context, cmd string, create func(int, service.CodeSpec) (*service.BatchResult, error)) error {
	args := c.Args()
	if len(args) < 3 {
		return c.Send(fmt.Sprintf("❌ 参数错误\n\n用法: %s <数量> <天数> <价格> [channels=...] [exclude=...]", cmd))
	}
	count, err := strconv.Atoi(args[0])
	if err != nil {
		return c.Send("❌ 数量必须是整数")
	}
	spec, err := parseCodeArgs(args[1:], false)
	if err != nil {
		return c.Send(adminError("参数错误", err))
	}
	spec.CreatedBy = c.Sender().ID

	done := utils.Progress(c, fmt.Sprintf("⏳ 正在生成 %d 个订阅码...", count))
	result, err := create(count, spec)
	done()
	if err != nil {
		return c.Send(adminError("批量生成失败", err))
	}

	caption := fmt.Sprintf(
		"✅ 批量生成完成\n\n📦 批次: %s\n🎫 成功: %d\n⏰ 时长: %d 天\n💰 价格: %.2f",
		result.BatchID, len(result.Codes), spec.DurationDays, spec.Price,
	)
	if result.Failed > 0 {
		caption += fmt.Sprintf("\n❌ 失败: %d", result.Failed)
	}

	doc := &tele.Document{
		File:     tele.FromReader(bytes.NewReader(result.Export(svc.Config.Location()))),
		FileName: result.Filename(),
		Caption:  caption,
	}
	if err := c.Send(doc); err != nil {
		logger.Error().Err(err).Str("batch_id", result.BatchID).Msg("发送批次文件失败")
		return c.Send(caption + "\n\n⚠️ 文件发送失败，可使用 /codes 查看。")
	}
	return nil
}

// Codes /codes 命令处理器
func Codes(c tele.Context) error {
	text, markup := codesPage(1)
	return c.Send(text, markup, tele.ModeMarkdown)
}

// codesPage 可用订阅码分页
func codesPage(page int) (string, *tele.ReplyMarkup) {
	if page < 1 {
		page = 1
	}
	codes, total, err := svc.Codes.ListAvailable(codesPageSize, (page-1)*codesPageSize)
	if err != nil {
		logger.Error().Err(err).Msg("读取订阅码失败")
		return "❌ 读取订阅码失败", keyboards.CloseKeyboard()
	}
	if total == 0 {
		return "🎫 暂无可用订阅码", keyboards.CloseKeyboard()
	}

	pages := keyboards.TotalPages(total, codesPageSize)
	if page > pages {
		// 翻页期间订阅码被用完，退回最后一页
		return codesPage(pages)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🎫 **可用订阅码** (%d)  第 %d/%d 页\n\n", total, page, pages))
	for _, code := range codes {
		sb.WriteString(fmt.Sprintf("`%s` | %d 天 | %.2f | %d/%d\n", code.Code, code.DurationDays, code.Price, code.CurrentUses, code.MaxUses))
	}
	return sb.String(), keyboards.CodesPagination(page, pages)
}

func formatCodeExpiry(code *models.Code) string {
	if code.ExpiresAt == nil {
		return "永久"
	}
	return code.ExpiresAt.In(svc.Config.Location()).Format("2006-01-02 15:04")
}

// adminError 管理命令的错误提示，参数类错误直接展示
func adminError(action string, err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, service.ErrLimitExceeded),
		errors.Is(err, service.ErrInvalidChannelID),
		errors.Is(err, service.ErrChannelNotFound),
		errors.Is(err, service.ErrMainChannelLocked),
		errors.Is(err, service.ErrOwnerProtected),
		errors.Is(err, service.ErrAdminNotFound),
		errors.Is(err, service.ErrInvalidCommand),
		errors.Is(err, service.ErrReservedCommand),
		errors.Is(err, service.ErrButtonExists),
		errors.Is(err, service.ErrButtonNotFound),
		errors.Is(err, service.ErrInvalidButtonFields):
		return fmt.Sprintf("❌ %s: %v", action, err)
	}
	logger.Error().Err(err).Str("action", action).Msg("管理操作失败")
	return fmt.Sprintf("❌ %s，请查看日志", action)
}
