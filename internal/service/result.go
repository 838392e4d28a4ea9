package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/channelpass/channelpass/internal/database/models"
)

// ActivationResult 兑换或试用的结果，预期内的失败通过 Err 返回而不是 error
type ActivationResult struct {
	Success      bool
	Message      string
	Code         string
	InviteLinks  []models.InviteLink
	ExpiresAt    time.Time
	DurationDays int
	IsTrial      bool
	// LinkFailures 创建邀请链接失败的频道数（含已回退到公开地址的）
	LinkFailures int
	Err          error
}

func failed(err error) *ActivationResult {
	return &ActivationResult{
		Success: false,
		Message: UserMessage(err),
		Err:     err,
	}
}

// Sweep 名称
const (
	SweepExpiry        = "expiry"
	SweepTrial         = "trial"
	SweepNotifications = "notifications"
)

// ItemOutcome 单个订阅者的处理结果
type ItemOutcome string

const (
	OutcomeProcessed ItemOutcome = "processed"
	OutcomeSkipped   ItemOutcome = "skipped"
	OutcomeFailed    ItemOutcome = "failed"
)

// ItemResult 清理任务中单个订阅者的结果
type ItemResult struct {
	UserID  int64
	Outcome ItemOutcome
	// Revoked 成功移出的频道数
	Revoked  int
	Notified bool
	Err      error
}

// SweepResult 一次清理任务的结果
type SweepResult struct {
	RunID      string
	Sweep      string
	StartedAt  time.Time
	FinishedAt time.Time
	Checked    int
	Items      []ItemResult
}

// Succeeded 处理成功的项
func (r *SweepResult) Succeeded() []ItemResult {
	return r.filter(OutcomeProcessed)
}

// Failed 处理失败的项
func (r *SweepResult) Failed() []ItemResult {
	return r.filter(OutcomeFailed)
}

// Skipped 被跳过的项（例如已被并发续期）
func (r *SweepResult) Skipped() []ItemResult {
	return r.filter(OutcomeSkipped)
}

func (r *SweepResult) filter(o ItemOutcome) []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Outcome == o {
			out = append(out, it)
		}
	}
	return out
}

// NotifiedCount 成功发送通知的数量
func (r *SweepResult) NotifiedCount() int {
	n := 0
	for _, it := range r.Items {
		if it.Notified {
			n++
		}
	}
	return n
}

// Touched 是否处理过任何订阅者
func (r *SweepResult) Touched() bool {
	return len(r.Items) > 0
}

// FormatResult 格式化结果
func (r *SweepResult) FormatResult(operation string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 **%s完成**\n\n", operation))
	sb.WriteString(fmt.Sprintf("🔍 检查: %d\n", r.Checked))
	sb.WriteString(fmt.Sprintf("✅ 成功: %d\n", len(r.Succeeded())))
	if n := len(r.Skipped()); n > 0 {
		sb.WriteString(fmt.Sprintf("⏭️ 跳过: %d\n", n))
	}
	sb.WriteString(fmt.Sprintf("❌ 失败: %d\n", len(r.Failed())))
	if r.Sweep != SweepNotifications {
		sb.WriteString(fmt.Sprintf("📨 已通知: %d\n", r.NotifiedCount()))
	}
	if !r.FinishedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("⏱️ 耗时: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)))
	}
	return sb.String()
}
