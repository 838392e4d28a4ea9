package repository_test

import (
	"testing"
	"time"

	"github.com/channelpass/channelpass/internal/database/dbtest"
	"github.com/channelpass/channelpass/internal/database/models"
	"github.com/channelpass/channelpass/internal/database/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelRepository(t *testing.T) {
	repo := repository.NewChannelRepository(dbtest.Open(t))

	require.NoError(t, repo.Upsert(&models.Channel{
		ChannelID: "-100111", ChannelName: "Main", IsActive: true, IsMainChannel: true, AddedAt: time.Now().UTC(),
	}))
	require.NoError(t, repo.Upsert(&models.Channel{
		ChannelID: "-100222", ChannelName: "Premium", IsActive: true, ChannelType: models.ChannelTypePremium,
	}))

	secondary, err := repo.ListSecondaryActive()
	require.NoError(t, err)
	require.Len(t, secondary, 1)
	assert.Equal(t, "-100222", secondary[0].ChannelID)

	main, err := repo.GetMain()
	require.NoError(t, err)
	assert.Equal(t, "-100111", main.ChannelID)

	found, err := repo.SetActive("-100222", false)
	require.NoError(t, err)
	assert.True(t, found)

	secondary, err = repo.ListSecondaryActive()
	require.NoError(t, err)
	assert.Empty(t, secondary)

	// 重复添加会更新名称并重新启用
	require.NoError(t, repo.Upsert(&models.Channel{
		ChannelID: "-100222", ChannelName: "Premium 2", ChannelUsername: "@prem", IsActive: true,
	}))
	got, err := repo.GetByChannelID("-100222")
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, "Premium 2", got.ChannelName)
	assert.Equal(t, "https://t.me/prem", got.PublicURL())

	count, err := repo.CountActive()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestAdminRepository(t *testing.T) {
	repo := repository.NewAdminRepository(dbtest.Open(t))

	require.NoError(t, repo.Activate(&models.Admin{UserID: 7, AddedBy: 1}))

	ok, err := repo.IsActiveAdmin(7)
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := repo.Deactivate(7)
	require.NoError(t, err)
	assert.True(t, removed)

	ok, err = repo.IsActiveAdmin(7)
	require.NoError(t, err)
	assert.False(t, ok)

	// 软删除后可以重新启用
	require.NoError(t, repo.Activate(&models.Admin{UserID: 7, AddedBy: 1}))
	admins, err := repo.ListActive()
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, models.PermissionAll, admins[0].Permissions)
}

func TestButtonRepository(t *testing.T) {
	repo := repository.NewButtonRepository(dbtest.Open(t))

	require.NoError(t, repo.Create(&models.DynamicButton{
		ButtonText: "FAQ", ButtonCommand: "faq", ButtonResponse: "answers", IsActive: true,
	}))

	found, err := repo.Update("faq", map[string]interface{}{"is_active": false})
	require.NoError(t, err)
	assert.True(t, found)

	active, err := repo.ListActive()
	require.NoError(t, err)
	assert.Empty(t, active)

	deleted, err := repo.Delete("faq")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.GetByCommand("faq")
	assert.True(t, repository.IsNotFound(err))
}
