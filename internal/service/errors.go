// Package service 订阅生命周期与管理服务
package service

import (
	"errors"
)

var (
	ErrCodeNotFound             = errors.New("订阅码不存在或不可用")
	ErrCodeExpired              = errors.New("订阅码已过期")
	ErrCodeExhausted            = errors.New("订阅码使用次数已达上限")
	ErrTrialAlreadyUsed         = errors.New("试用已使用过")
	ErrActiveSubscriptionExists = errors.New("已有有效订阅")
	ErrChannelAPI               = errors.New("频道接口调用失败")
	ErrPersistence              = errors.New("数据保存失败")
	ErrBusy                     = errors.New("操作进行中")

	ErrInvalidArgument     = errors.New("参数无效")
	ErrLimitExceeded       = errors.New("超出数量上限")
	ErrInvalidChannelID    = errors.New("频道 ID 格式无效")
	ErrChannelNotFound     = errors.New("频道不存在")
	ErrMainChannelLocked   = errors.New("主频道不能停用")
	ErrOwnerProtected      = errors.New("不能移除机器人所有者")
	ErrAdminNotFound       = errors.New("管理员不存在")
	ErrInvalidCommand      = errors.New("命令只能包含小写字母、数字和下划线")
	ErrReservedCommand     = errors.New("命令与内置命令冲突")
	ErrButtonExists        = errors.New("命令已存在")
	ErrButtonNotFound      = errors.New("按钮不存在")
	ErrSubscriberNotFound  = errors.New("没有订阅记录")
	ErrInvalidButtonFields = errors.New("按钮文字和回复内容不能为空")
)

// UserMessage 返回面向用户的提示
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCodeNotFound):
		return "❌ 订阅码无效或不存在，请检查后重试。"
	case errors.Is(err, ErrCodeExpired):
		return "❌ 该订阅码已过期。"
	case errors.Is(err, ErrCodeExhausted):
		return "❌ 该订阅码已达到最大使用次数。"
	case errors.Is(err, ErrTrialAlreadyUsed):
		return "❌ 您已经使用过试用，无法再次开通。"
	case errors.Is(err, ErrActiveSubscriptionExists):
		return "❌ 您当前已有有效订阅，无需开通试用。"
	case errors.Is(err, ErrBusy):
		return "⏳ 您的上一个请求仍在处理中，请稍后再试。"
	case errors.Is(err, ErrChannelAPI):
		return "⚠️ 频道接口暂时不可用，请稍后再试。"
	case errors.Is(err, ErrPersistence):
		return "❌ 保存订阅信息失败，请稍后再试或联系管理员。"
	}
	return "❌ " + err.Error()
}
