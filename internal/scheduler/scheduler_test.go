package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/service"
)

type fakeSweeper struct {
	mu        sync.Mutex
	calls     []string
	items     int
	deadlines []bool
}

func (f *fakeSweeper) record(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := ctx.Deadline()
	f.deadlines = append(f.deadlines, ok)
}

func (f *fakeSweeper) run(name string) (*service.SweepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	res := &service.SweepResult{Sweep: name, Checked: f.items}
	for i := 0; i < f.items; i++ {
		res.Items = append(res.Items, service.ItemResult{UserID: int64(i + 1), Outcome: service.OutcomeProcessed})
	}
	return res, nil
}

func (f *fakeSweeper) CheckExpired(ctx context.Context) (*service.SweepResult, error) {
	f.record(ctx)
	return f.run(service.SweepExpiry)
}

func (f *fakeSweeper) CheckExpiredTrials(context.Context) (*service.SweepResult, error) {
	return f.run(service.SweepTrial)
}

func (f *fakeSweeper) SendExpiryNotifications(context.Context) (*service.SweepResult, error) {
	return f.run(service.SweepNotifications)
}

type fakeBackup struct {
	backups, cleans int
}

func (f *fakeBackup) Backup() (*service.BackupResult, error) {
	f.backups++
	return &service.BackupResult{Filename: "backup_x.json.gz"}, nil
}

func (f *fakeBackup) CleanOldBackups() (int, error) {
	f.cleans++
	return 0, nil
}

type fakeNotifier struct {
	sent map[int64][]string
}

func (f *fakeNotifier) SendMessage(_ context.Context, userID int64, text string) error {
	if f.sent == nil {
		f.sent = map[int64][]string{}
	}
	f.sent[userID] = append(f.sent[userID], text)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Owner:    42,
		Timezone: "UTC",
		Scheduler: config.SchedulerConfig{
			CheckExpired:      true,
			CheckTrials:       true,
			SendNotifications: true,
			NotifyAt:          "09:00",
			ExpiryAt:          "10:00",
			TrialAt:           "11:00",
			BackupDB:          true,
			BackupAt:          "04:00",
		},
	}
}

func TestRegisterJobs(t *testing.T) {
	cfg := testConfig()
	s := New(cfg, &fakeSweeper{}, &fakeBackup{}, nil)
	require.NoError(t, s.registerJobs())
	assert.Len(t, s.cron.Jobs(), 4)

	cfg = testConfig()
	cfg.Scheduler.BackupDB = false
	cfg.Scheduler.CheckTrials = false
	s = New(cfg, &fakeSweeper{}, &fakeBackup{}, nil)
	require.NoError(t, s.registerJobs())
	assert.Len(t, s.cron.Jobs(), 2)
}

func TestRegisterJobs_InvalidTime(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.ExpiryAt = "25:99"
	s := New(cfg, &fakeSweeper{}, &fakeBackup{}, nil)
	assert.Error(t, s.registerJobs())
}

func TestRunNow(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := New(testConfig(), sweeper, &fakeBackup{}, nil)

	for _, task := range []string{service.SweepExpiry, service.SweepTrial, service.SweepNotifications} {
		res, err := s.RunNow(context.Background(), task)
		require.NoError(t, err)
		assert.Equal(t, task, res.Sweep)
	}
	assert.Equal(t, []string{service.SweepExpiry, service.SweepTrial, service.SweepNotifications}, sweeper.calls)

	_, err := s.RunNow(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestRunScheduled_ReportsToOwnerWhenTouched(t *testing.T) {
	notifier := &fakeNotifier{}
	sweeper := &fakeSweeper{}
	s := New(testConfig(), sweeper, &fakeBackup{}, notifier)

	s.runScheduled(service.SweepExpiry)
	assert.Empty(t, notifier.sent[42], "没有处理任何订阅者时不发送报告")

	sweeper.items = 2
	s.runScheduled(service.SweepExpiry)
	require.Len(t, notifier.sent[42], 1)
	assert.Contains(t, notifier.sent[42][0], "定时过期检查完成")
}

func TestRunScheduled_Backup(t *testing.T) {
	backup := &fakeBackup{}
	s := New(testConfig(), &fakeSweeper{}, backup, nil)

	s.runScheduled(TaskBackup)
	assert.Equal(t, 1, backup.backups)
	assert.Equal(t, 1, backup.cleans)
}

func TestRunScheduled_SweepDeadline(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := New(testConfig(), sweeper, &fakeBackup{}, nil)
	s.runScheduled(service.SweepExpiry)

	cfg := testConfig()
	cfg.Scheduler.JobTimeoutMinutes = 90
	s = New(cfg, sweeper, &fakeBackup{}, nil)
	s.runScheduled(service.SweepExpiry)

	assert.Equal(t, []bool{false, true}, sweeper.deadlines, "未配置超时时清理任务不应被截断")
}
