package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/database/dbtest"
	"github.com/channelpass/channelpass/internal/database/models"
	"github.com/channelpass/channelpass/internal/database/repository"
	"github.com/channelpass/channelpass/pkg/utils"
)

const (
	mainChannelID = "-1001000"
	premiumA      = "-1002000"
	premiumB      = "-1003000"
)

var errAPIDown = errors.New("api down")

type removeCall struct {
	ChannelID string
	UserID    int64
}

// fakeAPI 记录所有调用的频道接口
type fakeAPI struct {
	mu sync.Mutex

	linkErr     map[string]error
	removeFails map[string]int // 剩余失败次数，-1 表示一直失败
	sendErr     error

	linkCalls   []string
	removeCalls []removeCall
	messages    map[int64][]string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		linkErr:     map[string]error{},
		removeFails: map[string]int{},
		messages:    map[int64][]string{},
	}
}

func (f *fakeAPI) CreateInviteLink(_ context.Context, channelID string, _ time.Time, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkCalls = append(f.linkCalls, channelID)
	if err := f.linkErr[channelID]; err != nil {
		return "", err
	}
	return fmt.Sprintf("https://t.me/+invite%s_%d", channelID, len(f.linkCalls)), nil
}

func (f *fakeAPI) RemoveMember(_ context.Context, channelID string, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls = append(f.removeCalls, removeCall{ChannelID: channelID, UserID: userID})
	switch n := f.removeFails[channelID]; {
	case n < 0:
		return errAPIDown
	case n > 0:
		f.removeFails[channelID] = n - 1
		return errAPIDown
	}
	return nil
}

func (f *fakeAPI) SendMessage(_ context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages[userID] = append(f.messages[userID], text)
	return nil
}

func (f *fakeAPI) removedFrom(userID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.removeCalls {
		if c.UserID == userID {
			out = append(out, c.ChannelID)
		}
	}
	return out
}

func (f *fakeAPI) messageCount(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[userID])
}

type testEnv struct {
	db        *gorm.DB
	api       *fakeAPI
	cfg       *config.Config
	lifecycle *LifecycleService
	expiry    *ExpiryService
	codes     *CodeService
}

func testConfig() *config.Config {
	return &config.Config{
		BotToken: "test",
		Owner:    1,
		Timezone: "UTC",
		MainChannel: config.ChannelConfig{
			ID:       mainChannelID,
			Username: "@mainch",
			Name:     "Main",
		},
		Lifecycle: config.LifecycleConfig{
			TrialDays:         2,
			NotifyWindowHours: 24,
			RevokeDelayMs:     1,
			SweepDelayMs:      1,
			RetryAttempts:     3,
			RetryBaseDelayMs:  1,
			BatchLimit:        100,
			BulkLimit:         1000,
			CodeValidityDays:  30,
		},
	}
}

// newTestEnv 内存库 + 一个主频道和两个付费频道
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	utils.CacheFlush()

	db := dbtest.Open(t)
	cfg := testConfig()
	api := newFakeAPI()

	channels := repository.NewChannelRepository(db)
	for _, ch := range []models.Channel{
		{ChannelID: mainChannelID, ChannelUsername: "@mainch", ChannelName: "Main", IsActive: true, IsMainChannel: true},
		{ChannelID: premiumA, ChannelUsername: "@prema", ChannelName: "Premium A", IsActive: true, ChannelType: models.ChannelTypePremium},
		{ChannelID: premiumB, ChannelName: "Premium B", IsActive: true, ChannelType: models.ChannelTypePremium},
	} {
		ch := ch
		require.NoError(t, channels.Upsert(&ch))
	}

	return &testEnv{
		db:        db,
		api:       api,
		cfg:       cfg,
		lifecycle: NewLifecycleService(db, api, nil, cfg),
		expiry:    NewExpiryService(db, api, nil, cfg),
		codes:     NewCodeService(db, cfg),
	}
}

func (e *testEnv) insertCode(t *testing.T, c models.Code) *models.Code {
	t.Helper()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.MaxUses == 0 {
		c.MaxUses = 1
	}
	if c.Channels == nil {
		c.Channels = []string{}
	}
	if c.ExcludedChannels == nil {
		c.ExcludedChannels = []string{}
	}
	require.NoError(t, repository.NewCodeRepository(e.db).Create(&c))
	return &c
}

func (e *testEnv) insertSubscriber(t *testing.T, s models.Subscriber) {
	t.Helper()
	if s.SubscribedAt.IsZero() {
		s.SubscribedAt = s.ExpiresAt.Add(-30 * 24 * time.Hour)
	}
	if s.Channels == nil {
		s.Channels = []string{}
	}
	if s.ExcludedChannels == nil {
		s.ExcludedChannels = []string{}
	}
	require.NoError(t, repository.NewSubscriberRepository(e.db).Upsert(&s))
}

func (e *testEnv) subscriber(t *testing.T, userID int64) *models.Subscriber {
	t.Helper()
	sub, err := repository.NewSubscriberRepository(e.db).GetByUserID(userID)
	require.NoError(t, err)
	return sub
}

func (e *testEnv) code(t *testing.T, code string) *models.Code {
	t.Helper()
	c, err := repository.NewCodeRepository(e.db).GetByCode(code)
	require.NoError(t, err)
	return c
}

func linkChannels(links []models.InviteLink) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.ChannelID)
	}
	return out
}
