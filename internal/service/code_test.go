package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelpass/channelpass/internal/database/models"
)

func TestCodeText(t *testing.T) {
	tests := []struct {
		in    string
		found string
		ok    bool
	}{
		{"AAAABBBBCCCC", "AAAABBBBCCCC", true},
		{"我的订阅码是 AB12CD34EF56 谢谢", "AB12CD34EF56", true},
		{"ab12cd34ef56", "", false},
		{"AAAABBBBCCCCD", "", false},
		{"hello", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := FindCodeInText(tt.in)
			if ok != tt.ok || got != tt.found {
				t.Errorf("FindCodeInText(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.found, tt.ok)
			}
		})
	}

	if got := NormalizeCode("  ab12cd34ef56\n"); got != "AB12CD34EF56" {
		t.Errorf("NormalizeCode = %q", got)
	}
	if IsValidCodeFormat("AB12CD34EF5") {
		t.Error("11 位不应通过校验")
	}
}

func TestFindCodesInText(t *testing.T) {
	got := FindCodesInText("订单号 123456789012，订阅码 ABCDEFGHJKLM，再发一次 ABCDEFGHJKLM")
	assert.Equal(t, []string{"123456789012", "ABCDEFGHJKLM"}, got)
	assert.Empty(t, FindCodesInText("没有订阅码"))
}

func TestCodeService_DetectCode(t *testing.T) {
	env := newTestEnv(t)
	env.insertCode(t, models.Code{Code: "ABCDEFGHJKLM", DurationDays: 30, IsActive: true})
	env.insertCode(t, models.Code{Code: "USEDUSEDUSED", DurationDays: 30, IsActive: true, CurrentUses: 1})

	code, ok, err := env.codes.DetectCode("订单号 123456789012，订阅码 ABCDEFGHJKLM")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ABCDEFGHJKLM", code, "前面的 12 位数字不是订阅码，应跳过")

	code, ok, err = env.codes.DetectCode("USEDUSEDUSED ABCDEFGHJKLM")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ABCDEFGHJKLM", code, "已用完的码应跳过")

	_, ok, err = env.codes.DetectCode("订单号 123456789012 USEDUSEDUSED")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.True(t, IsValidCodeFormat(code), code)
		seen[code] = true
	}
	assert.Len(t, seen, 200)
}

func TestCodeService_CreateCode(t *testing.T) {
	env := newTestEnv(t)

	c, err := env.codes.CreateCode(CodeSpec{DurationDays: 30, Price: 9.9, CreatedBy: 1})
	require.NoError(t, err)
	assert.True(t, IsValidCodeFormat(c.Code))
	assert.Equal(t, 1, c.MaxUses)
	assert.True(t, c.ApplyToAllChannels)
	require.NotNil(t, c.ExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 30), *c.ExpiresAt, 5*time.Second)

	res := env.lifecycle.Redeem(context.Background(), UserInfo{ID: 100}, strings.ToLower(c.Code))
	assert.True(t, res.Success, res.Message)
}

func TestCodeService_ScopedCode(t *testing.T) {
	env := newTestEnv(t)

	c, err := env.codes.CreateCode(CodeSpec{DurationDays: 7, MaxUses: 3, Channels: []string{"1002000"}, ExcludedChannels: []string{premiumB}})
	require.NoError(t, err)
	assert.False(t, c.ApplyToAllChannels)
	assert.Equal(t, []string{"-1001002000"}, []string(c.Channels))

	_, err = env.codes.CreateCode(CodeSpec{DurationDays: 7, Channels: []string{"abc"}})
	assert.ErrorIs(t, err, ErrInvalidChannelID)
}

func TestCodeService_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		spec CodeSpec
	}{
		{"天数为 0", CodeSpec{DurationDays: 0}},
		{"天数过大", CodeSpec{DurationDays: 4000}},
		{"负价格", CodeSpec{DurationDays: 1, Price: -1}},
		{"负次数", CodeSpec{DurationDays: 1, MaxUses: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.codes.CreateCode(tt.spec)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestCodeService_CreateBatch(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.codes.CreateBatch(20, CodeSpec{DurationDays: 30, Price: 5, CreatedBy: 1})
	require.NoError(t, err)
	require.Len(t, res.Codes, 20)
	assert.Regexp(t, `^BATCH_\d{8}_\d{6}$`, res.BatchID)

	codes, total, err := env.codes.ListAvailable(100, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(20), total)
	for _, c := range codes {
		assert.Equal(t, res.BatchID, c.BatchID)
	}

	export := string(res.Export(env.cfg.Location()))
	assert.Contains(t, export, res.BatchID)
	assert.Contains(t, export, res.Codes[0].Code)
	assert.True(t, strings.HasPrefix(res.Filename(), "batch_"))

	_, err = env.codes.CreateBatch(101, CodeSpec{DurationDays: 30})
	assert.ErrorIs(t, err, ErrLimitExceeded)
	_, err = env.codes.CreateBatch(0, CodeSpec{DurationDays: 30})
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestCodeService_CreateBulk(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.codes.CreateBulk(150, CodeSpec{DurationDays: 30})
	require.NoError(t, err)
	assert.Len(t, res.Codes, 150)
	assert.Zero(t, res.Failed)

	_, err = env.codes.CreateBulk(1001, CodeSpec{DurationDays: 30})
	assert.ErrorIs(t, err, ErrLimitExceeded)
}
