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

func newSubscriber(userID int64, expiresAt time.Time) *models.Subscriber {
	return &models.Subscriber{
		UserID:       userID,
		CodeUsed:     "AAAABBBBCCCC",
		SubscribedAt: expiresAt.Add(-30 * 24 * time.Hour),
		ExpiresAt:    expiresAt,
		IsActive:     true,
		Channels:     []string{},
		InviteLinks: []models.InviteLink{
			{ChannelID: "-1001", ChannelName: "A", InviteLink: "https://t.me/+a"},
		},
	}
}

func TestSubscriberRepository_UpsertReplaces(t *testing.T) {
	repo := repository.NewSubscriberRepository(dbtest.Open(t))
	now := time.Now().UTC()

	first := newSubscriber(42, now.Add(24*time.Hour))
	require.NoError(t, repo.Upsert(first))

	second := newSubscriber(42, now.Add(60*24*time.Hour))
	second.CodeUsed = "ZZZZYYYYXXXX"
	second.InviteLinks = []models.InviteLink{
		{ChannelID: "-1002", ChannelName: "B", InviteLink: "https://t.me/+b"},
	}
	require.NoError(t, repo.Upsert(second))

	_, total, err := repo.ListActive(now, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	got, err := repo.GetByUserID(42)
	require.NoError(t, err)
	assert.Equal(t, "ZZZZYYYYXXXX", got.CodeUsed)
	assert.WithinDuration(t, now.Add(60*24*time.Hour), got.ExpiresAt, time.Second)
	require.Len(t, got.InviteLinks, 1)
	assert.Equal(t, "-1002", got.InviteLinks[0].ChannelID)
}

func TestSubscriberRepository_ListExpiredAndDeactivate(t *testing.T) {
	repo := repository.NewSubscriberRepository(dbtest.Open(t))
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(newSubscriber(1, now.Add(-24*time.Hour))))
	require.NoError(t, repo.Upsert(newSubscriber(2, now.Add(24*time.Hour))))
	trial := newSubscriber(3, now.Add(-time.Hour))
	trial.IsTrial = true
	require.NoError(t, repo.Upsert(trial))

	expired, err := repo.ListExpired(now)
	require.NoError(t, err)
	assert.Len(t, expired, 2)

	trials, err := repo.ListExpiredTrials(now)
	require.NoError(t, err)
	require.Len(t, trials, 1)
	assert.Equal(t, int64(3), trials[0].UserID)

	ok, err := repo.Deactivate(1, now, false)
	require.NoError(t, err)
	assert.True(t, ok)

	// 第二次停用不应再命中
	ok, err = repo.Deactivate(1, now, false)
	require.NoError(t, err)
	assert.False(t, ok)

	// 未过期的订阅不会被停用
	ok, err = repo.Deactivate(2, now, false)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Deactivate(3, now, false)
	require.NoError(t, err)
	assert.True(t, ok)

	paid, err := repo.GetByUserID(1)
	require.NoError(t, err)
	assert.False(t, paid.IsActive)
	assert.False(t, paid.TrialUsed)

	got, err := repo.GetByUserID(3)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.True(t, got.TrialUsed)

	expired, err = repo.ListExpired(now)
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestSubscriberRepository_DeactivateTrialsOnly(t *testing.T) {
	repo := repository.NewSubscriberRepository(dbtest.Open(t))
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(newSubscriber(1, now.Add(-time.Hour))))

	ok, err := repo.Deactivate(1, now, true)
	require.NoError(t, err)
	assert.False(t, ok, "付费订阅不应被试用清理命中")
}

func TestSubscriberRepository_ListExpiring(t *testing.T) {
	repo := repository.NewSubscriberRepository(dbtest.Open(t))
	now := time.Now().UTC()
	window := 24 * time.Hour

	require.NoError(t, repo.Upsert(newSubscriber(1, now.Add(2*time.Hour))))
	require.NoError(t, repo.Upsert(newSubscriber(2, now.Add(48*time.Hour))))
	require.NoError(t, repo.Upsert(newSubscriber(3, now.Add(-time.Hour))))

	recent := newSubscriber(4, now.Add(3*time.Hour))
	notified := now.Add(-time.Hour)
	recent.LastNotification = &notified
	require.NoError(t, repo.Upsert(recent))

	stale := newSubscriber(5, now.Add(5*time.Hour))
	old := now.Add(-30 * time.Hour)
	stale.LastNotification = &old
	require.NoError(t, repo.Upsert(stale))

	subs, err := repo.ListExpiring(now, window)
	require.NoError(t, err)

	var ids []int64
	for _, s := range subs {
		ids = append(ids, s.UserID)
	}
	assert.ElementsMatch(t, []int64{1, 5}, ids)

	require.NoError(t, repo.TouchNotification(1, now))
	subs, err = repo.ListExpiring(now, window)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(5), subs[0].UserID)
}

func TestSubscriberRepository_CountStats(t *testing.T) {
	repo := repository.NewSubscriberRepository(dbtest.Open(t))
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(newSubscriber(1, now.Add(time.Hour))))
	trial := newSubscriber(2, now.Add(time.Hour))
	trial.IsTrial = true
	require.NoError(t, repo.Upsert(trial))
	require.NoError(t, repo.Upsert(newSubscriber(3, now.Add(-time.Hour))))

	stats, err := repo.CountStats(now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Active)
	assert.Equal(t, int64(1), stats.ActiveTrial)
	assert.Equal(t, int64(1), stats.Inactive)
}
