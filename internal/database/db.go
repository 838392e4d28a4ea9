// Package database 数据库初始化
package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/database/models"
	"github.com/channelpass/channelpass/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init 初始化全局数据库连接
func Init(cfg *config.DatabaseConfig) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	logger.Info().Str("driver", cfg.Driver).Msg("数据库连接成功")
	return nil
}

// Open 按驱动打开数据库并执行迁移
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Name,
		)
		dialector = mysql.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接池失败: %w", err)
	}

	if db.Dialector.Name() == "sqlite" {
		// SQLite 单写者，所有操作共享一个连接
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return db, nil
}

func sqliteDSN(path string) string {
	if path == "" {
		path = "subscription_bot.db"
	}
	if strings.Contains(path, "?") {
		return path + "&_busy_timeout=5000"
	}
	return path + "?_busy_timeout=5000"
}

// autoMigrate 自动迁移表结构，只会新增表和列
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Code{},
		&models.Subscriber{},
		&models.Admin{},
		&models.Channel{},
		&models.DynamicButton{},
	)
}

// Seed 写入引导管理员和主频道，重复执行无副作用
func Seed(db *gorm.DB, cfg *config.Config) error {
	now := time.Now().UTC()

	if cfg.Owner != 0 {
		owner := models.Admin{
			UserID:      cfg.Owner,
			AddedBy:     cfg.Owner,
			AddedAt:     now,
			Permissions: models.PermissionAll,
			IsActive:    true,
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&owner).Error; err != nil {
			return fmt.Errorf("写入引导管理员失败: %w", err)
		}
	}

	if cfg.MainChannel.ID != "" {
		id, ok := models.NormalizeChannelID(cfg.MainChannel.ID)
		if !ok {
			return fmt.Errorf("主频道 ID 非法: %s", cfg.MainChannel.ID)
		}
		main := models.Channel{
			ChannelID:           id,
			ChannelUsername:     cfg.MainChannel.Username,
			ChannelName:         cfg.MainChannel.Name,
			AddedBy:             cfg.Owner,
			AddedAt:             now,
			IsActive:            true,
			ChannelType:         "main",
			RequireSubscription: false,
			IsMainChannel:       true,
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}},
			DoNothing: true,
		}).Create(&main).Error; err != nil {
			return fmt.Errorf("写入主频道失败: %w", err)
		}
	}

	logger.Info().Int64("owner", cfg.Owner).Str("main_channel", cfg.MainChannel.ID).Msg("初始数据已就绪")
	return nil
}

// Close 关闭数据库连接
func Close() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// GetDB 获取数据库实例
func GetDB() *gorm.DB {
	return DB
}
