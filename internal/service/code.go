package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/database/models"
	"github.com/channelpass/channelpass/internal/database/repository"
	"github.com/channelpass/channelpass/internal/metrics"
	"github.com/channelpass/channelpass/pkg/logger"
)

// CodeLength 订阅码长度
const CodeLength = 12

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	codeFormat  = regexp.MustCompile(`^[A-Z0-9]{12}$`)
	codeInText  = regexp.MustCompile(`\b[A-Z0-9]{12}\b`)
	maxDuration = 3650
)

// NormalizeCode 去掉空白并转为大写
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsValidCodeFormat 是否为 12 位大写字母数字
func IsValidCodeFormat(s string) bool {
	return codeFormat.MatchString(s)
}

// FindCodeInText 文本中第一个形如订阅码的片段，原文大小写敏感
func FindCodeInText(text string) (string, bool) {
	m := codeInText.FindString(text)
	return m, m != ""
}

// FindCodesInText 文本中所有形如订阅码的片段，按出现顺序去重
func FindCodesInText(text string) []string {
	matches := codeInText.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	out := matches[:0]
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// randomCode 生成 n 位随机字母数字
func randomCode(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[idx.Int64()])
	}
	return sb.String(), nil
}

// GenerateCode 生成一个订阅码字符串
func GenerateCode() (string, error) {
	return randomCode(CodeLength)
}

// uniqueCode 生成数据库中不存在的订阅码
func uniqueCode(repo *repository.CodeRepository, gen func() (string, error)) (string, error) {
	for i := 0; i < 5; i++ {
		code, err := gen()
		if err != nil {
			return "", fmt.Errorf("生成订阅码失败: %w", err)
		}
		exists, err := repo.Exists(code)
		if err != nil {
			return "", fmt.Errorf("检查订阅码失败: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("生成唯一订阅码失败")
}

// CodeSpec 新订阅码的参数
type CodeSpec struct {
	DurationDays int
	Price        float64
	MaxUses      int
	// Channels 为空表示适用于全部非主频道
	Channels         []string
	ExcludedChannels []string
	CreatedBy        int64
}

// CodeService 订阅码发放
type CodeService struct {
	db    *gorm.DB
	codes *repository.CodeRepository
	cfg   config.LifecycleConfig
	loc   *time.Location
	now   func() time.Time
}

// NewCodeService 创建订阅码服务
func NewCodeService(db *gorm.DB, cfg *config.Config) *CodeService {
	return &CodeService{
		db:    db,
		codes: repository.NewCodeRepository(db),
		cfg:   cfg.Lifecycle,
		loc:   cfg.Location(),
		now:   utcNow,
	}
}

// DetectCode 在普通消息中找出第一个当前可兑换的订阅码，
// 12 位的订单号、手机号等不会被当成订阅码
func (s *CodeService) DetectCode(text string) (string, bool, error) {
	now := s.now()
	for _, candidate := range FindCodesInText(text) {
		code, err := s.codes.GetByCode(candidate)
		if repository.IsNotFound(err) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if code.RedeemableAt(now) && !code.IsTrial {
			return code.Code, true, nil
		}
	}
	return "", false, nil
}

// BatchResult 批量生成结果
type BatchResult struct {
	BatchID string
	Codes   []models.Code
	Failed  int
	Spec    CodeSpec
}

// CreateCode 生成单个订阅码
func (s *CodeService) CreateCode(spec CodeSpec) (*models.Code, error) {
	spec, err := s.normalizeSpec(spec)
	if err != nil {
		return nil, err
	}

	code, err := uniqueCode(s.codes, GenerateCode)
	if err != nil {
		return nil, err
	}

	c := s.build(code, spec, "")
	if err := s.codes.Create(&c); err != nil {
		logger.Error().Err(err).Int64("created_by", spec.CreatedBy).Msg("保存订阅码失败")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	logger.Info().
		Int64("created_by", spec.CreatedBy).
		Str("code", c.Code).
		Int("days", spec.DurationDays).
		Float64("price", spec.Price).
		Int("max_uses", spec.MaxUses).
		Msg("成功生成订阅码")
	metrics.AddCodesIssued(1)

	return &c, nil
}

// CreateBatch 批量生成，全部成功或全部失败
func (s *CodeService) CreateBatch(count int, spec CodeSpec) (*BatchResult, error) {
	if count <= 0 || count > s.cfg.BatchLimit {
		return nil, fmt.Errorf("%w: 数量应在 1-%d 之间", ErrLimitExceeded, s.cfg.BatchLimit)
	}
	spec, err := s.normalizeSpec(spec)
	if err != nil {
		return nil, err
	}

	batchID := s.batchID()
	codes := make([]models.Code, 0, count)
	seen := make(map[string]bool, count)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.codes.WithTx(tx)
		for len(codes) < count {
			code, err := uniqueCode(repo, GenerateCode)
			if err != nil {
				return err
			}
			if seen[code] {
				continue
			}
			seen[code] = true
			codes = append(codes, s.build(code, spec, batchID))
		}
		return repo.BatchCreate(codes)
	})
	if err != nil {
		logger.Error().Err(err).Str("batch_id", batchID).Msg("批量生成订阅码失败")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	logger.Info().
		Str("batch_id", batchID).
		Int("count", count).
		Int("days", spec.DurationDays).
		Msg("批量生成订阅码完成")
	metrics.AddCodesIssued(len(codes))

	return &BatchResult{BatchID: batchID, Codes: codes, Spec: spec}, nil
}

// CreateBulk 大批量生成，单个失败不影响其他
func (s *CodeService) CreateBulk(count int, spec CodeSpec) (*BatchResult, error) {
	if count <= 0 || count > s.cfg.BulkLimit {
		return nil, fmt.Errorf("%w: 数量应在 1-%d 之间", ErrLimitExceeded, s.cfg.BulkLimit)
	}
	spec, err := s.normalizeSpec(spec)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{BatchID: s.batchID(), Spec: spec}
	for i := 0; i < count; i++ {
		code, err := uniqueCode(s.codes, GenerateCode)
		if err != nil {
			result.Failed++
			continue
		}
		c := s.build(code, spec, result.BatchID)
		if err := s.codes.Create(&c); err != nil {
			logger.Warn().Err(err).Str("batch_id", result.BatchID).Msg("保存订阅码失败")
			result.Failed++
			continue
		}
		result.Codes = append(result.Codes, c)
	}

	logger.Info().
		Str("batch_id", result.BatchID).
		Int("created", len(result.Codes)).
		Int("failed", result.Failed).
		Msg("大批量生成订阅码完成")
	metrics.AddCodesIssued(len(result.Codes))

	return result, nil
}

// ListAvailable 分页获取可用订阅码
func (s *CodeService) ListAvailable(limit, offset int) ([]models.Code, int64, error) {
	return s.codes.ListAvailable(limit, offset)
}

// Export 导出为文本文件内容
func (r *BatchResult) Export(loc *time.Location) []byte {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Batch: %s\n", r.BatchID))
	if len(r.Codes) > 0 {
		sb.WriteString(fmt.Sprintf("Created: %s\n", r.Codes[0].CreatedAt.In(loc).Format("2006-01-02 15:04:05")))
	}
	sb.WriteString(fmt.Sprintf("Duration: %d days\n", r.Spec.DurationDays))
	sb.WriteString(fmt.Sprintf("Price: %.2f\n", r.Spec.Price))
	sb.WriteString(fmt.Sprintf("Max uses: %d\n", r.Spec.MaxUses))
	sb.WriteString(fmt.Sprintf("Count: %d\n", len(r.Codes)))
	sb.WriteString(strings.Repeat("=", 32) + "\n")
	for _, c := range r.Codes {
		sb.WriteString(c.Code)
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

// Filename 导出文件名
func (r *BatchResult) Filename() string {
	return fmt.Sprintf("batch_%s.txt", strings.TrimPrefix(r.BatchID, "BATCH_"))
}

func (s *CodeService) batchID() string {
	return "BATCH_" + s.now().In(s.loc).Format("20060102_150405")
}

func (s *CodeService) build(code string, spec CodeSpec, batchID string) models.Code {
	now := s.now()
	expiresAt := now.AddDate(0, 0, s.cfg.CodeValidityDays)
	return models.Code{
		Code:               code,
		DurationDays:       spec.DurationDays,
		Price:              spec.Price,
		CreatedBy:          spec.CreatedBy,
		CreatedAt:          now,
		ExpiresAt:          &expiresAt,
		BatchID:            batchID,
		Channels:           nonNil(spec.Channels),
		ExcludedChannels:   nonNil(spec.ExcludedChannels),
		ApplyToAllChannels: len(spec.Channels) == 0,
		MaxUses:            spec.MaxUses,
		IsActive:           true,
	}
}

// normalizeSpec 校验参数并规范化频道 ID
func (s *CodeService) normalizeSpec(spec CodeSpec) (CodeSpec, error) {
	if spec.DurationDays <= 0 || spec.DurationDays > maxDuration {
		return spec, fmt.Errorf("%w: 天数应在 1-%d 之间", ErrInvalidArgument, maxDuration)
	}
	if spec.Price < 0 {
		return spec, fmt.Errorf("%w: 价格不能为负数", ErrInvalidArgument)
	}
	if spec.MaxUses == 0 {
		spec.MaxUses = 1
	}
	if spec.MaxUses < 0 {
		return spec, fmt.Errorf("%w: 使用次数必须大于 0", ErrInvalidArgument)
	}

	var err error
	if spec.Channels, err = normalizeChannelIDs(spec.Channels); err != nil {
		return spec, err
	}
	if spec.ExcludedChannels, err = normalizeChannelIDs(spec.ExcludedChannels); err != nil {
		return spec, err
	}
	return spec, nil
}

func normalizeChannelIDs(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		norm, ok := models.NormalizeChannelID(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidChannelID, id)
		}
		out = append(out, norm)
	}
	return out, nil
}
