package service

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/database/models"
	"github.com/channelpass/channelpass/pkg/logger"
)

const backupVersion = "1"

// BackupService 数据库备份服务
type BackupService struct {
	db        *gorm.DB
	backupDir string
	maxCount  int
	now       func() time.Time
}

// BackupData 备份文件内容
type BackupData struct {
	Version     string                 `json:"version"`
	CreatedAt   time.Time              `json:"created_at"`
	Codes       []models.Code          `json:"codes"`
	Subscribers []models.Subscriber    `json:"subscribers"`
	Admins      []models.Admin         `json:"admins"`
	Channels    []models.Channel       `json:"channels"`
	Buttons     []models.DynamicButton `json:"dynamic_buttons"`
}

// Records 记录总数
func (d *BackupData) Records() int {
	return len(d.Codes) + len(d.Subscribers) + len(d.Admins) + len(d.Channels) + len(d.Buttons)
}

// BackupResult 备份结果
type BackupResult struct {
	Filename string
	FilePath string
	Size     int64
	Duration time.Duration
	Records  int
}

// BackupInfo 备份文件信息
type BackupInfo struct {
	Filename  string
	Size      int64
	CreatedAt time.Time
}

// NewBackupService 创建备份服务
func NewBackupService(db *gorm.DB, cfg *config.DatabaseConfig) *BackupService {
	return &BackupService{
		db:        db,
		backupDir: cfg.BackupDir,
		maxCount:  cfg.BackupMaxCount,
		now:       utcNow,
	}
}

// Backup 导出全部表到压缩的 JSON 文件
func (s *BackupService) Backup() (*BackupResult, error) {
	start := time.Now()
	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("创建备份目录失败: %w", err)
	}

	data := BackupData{Version: backupVersion, CreatedAt: s.now()}
	for name, dest := range map[string]interface{}{
		"codes":           &data.Codes,
		"subscribers":     &data.Subscribers,
		"admins":          &data.Admins,
		"channels":        &data.Channels,
		"dynamic_buttons": &data.Buttons,
	} {
		if err := s.db.Order("id ASC").Find(dest).Error; err != nil {
			return nil, fmt.Errorf("读取 %s 失败: %w", name, err)
		}
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("序列化失败: %w", err)
	}

	filename := fmt.Sprintf("backup_%s.json.gz", data.CreatedAt.Format("20060102_150405"))
	path := filepath.Join(s.backupDir, filename)
	size, err := writeCompressed(path, payload)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("file", filename).
		Int64("size", size).
		Int("records", data.Records()).
		Msg("💾 数据库备份完成")

	return &BackupResult{
		Filename: filename,
		FilePath: path,
		Size:     size,
		Duration: time.Since(start),
		Records:  data.Records(),
	}, nil
}

func writeCompressed(path string, data []byte) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("创建文件失败: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	if _, err := gz.Write(data); err != nil {
		return 0, fmt.Errorf("压缩写入失败: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("压缩写入失败: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Load 读取备份文件
func (s *BackupService) Load(filename string) (*BackupData, error) {
	file, err := os.Open(filepath.Join(s.backupDir, filepath.Base(filename)))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("解压失败: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}
	var data BackupData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("解析备份数据失败: %w", err)
	}
	return &data, nil
}

// Restore 按主键覆盖写回备份中的全部记录
func (s *BackupService) Restore(filename string) (int, error) {
	data, err := s.Load(filename)
	if err != nil {
		return 0, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for name, rows := range map[string]interface{}{
			"codes":           data.Codes,
			"subscribers":     data.Subscribers,
			"admins":          data.Admins,
			"channels":        data.Channels,
			"dynamic_buttons": data.Buttons,
		} {
			if isEmpty(rows) {
				continue
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(rows).Error; err != nil {
				return fmt.Errorf("恢复 %s 失败: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info().Str("file", filename).Int("records", data.Records()).Msg("数据库恢复完成")
	return data.Records(), nil
}

func isEmpty(rows interface{}) bool {
	switch v := rows.(type) {
	case []models.Code:
		return len(v) == 0
	case []models.Subscriber:
		return len(v) == 0
	case []models.Admin:
		return len(v) == 0
	case []models.Channel:
		return len(v) == 0
	case []models.DynamicButton:
		return len(v) == 0
	}
	return true
}

// ListBackups 列出备份，最新的在前
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "backup_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Filename:  entry.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	// 文件名带时间戳，按名称倒序即按时间倒序
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Filename > backups[j].Filename
	})
	return backups, nil
}

// CleanOldBackups 只保留最新的 maxCount 个备份
func (s *BackupService) CleanOldBackups() (int, error) {
	backups, err := s.ListBackups()
	if err != nil {
		return 0, err
	}
	if s.maxCount <= 0 || len(backups) <= s.maxCount {
		return 0, nil
	}

	deleted := 0
	for _, b := range backups[s.maxCount:] {
		if err := os.Remove(filepath.Join(s.backupDir, b.Filename)); err != nil {
			logger.Warn().Err(err).Str("file", b.Filename).Msg("删除旧备份失败")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// FormatSize 格式化文件大小
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
