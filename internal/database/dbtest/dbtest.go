// Package dbtest 测试用内存数据库
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/database"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var seq atomic.Int64

// Open 为每个测试打开独立的内存 SQLite 库，测试结束自动关闭
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:dbtest_%d?mode=memory&cache=shared", seq.Add(1))
	db, err := database.Open(&config.DatabaseConfig{Driver: "sqlite", Path: dsn})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
