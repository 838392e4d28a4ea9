package service

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/database/models"
)

func TestBackupService(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	backups := NewBackupService(env.db, &config.DatabaseConfig{BackupDir: dir, BackupMaxCount: 2})

	env.insertCode(t, models.Code{Code: "BACKUP000000", DurationDays: 30, IsActive: true})
	env.insertSubscriber(t, models.Subscriber{UserID: 5, CodeUsed: "BACKUP000000", ExpiresAt: time.Now().UTC().Add(time.Hour), IsActive: true})

	res, err := backups.Backup()
	require.NoError(t, err)
	assert.Equal(t, 5, res.Records) // 3 个频道 + 1 个订阅码 + 1 个订阅者
	assert.FileExists(t, res.FilePath)

	data, err := backups.Load(res.Filename)
	require.NoError(t, err)
	require.Len(t, data.Codes, 1)
	assert.Equal(t, "BACKUP000000", data.Codes[0].Code)
	require.Len(t, data.Subscribers, 1)
	assert.Equal(t, int64(5), data.Subscribers[0].UserID)

	// 删除后可从备份恢复
	require.NoError(t, env.db.Where("user_id = ?", 5).Delete(&models.Subscriber{}).Error)
	n, err := backups.Restore(res.Filename)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.True(t, env.subscriber(t, 5).IsActive)

	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, fmt.Sprintf("backup_2020010%d_000000.json.gz", i+1))
		require.NoError(t, os.WriteFile(name, []byte("x"), 0644))
	}
	deleted, err := backups.CleanOldBackups()
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	list, err := backups.ListBackups()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, res.Filename, list[0].Filename)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KB", FormatSize(1536))
	assert.Equal(t, "2.0 MB", FormatSize(2*1024*1024))
}
