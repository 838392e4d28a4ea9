package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	CacheFlush()
	calls := 0
	load := func() (bool, error) {
		calls++
		return true, nil
	}

	v, err := Load(AdminKey(7), time.Minute, load)
	require.NoError(t, err)
	assert.True(t, v)

	_, _ = Load(AdminKey(7), time.Minute, load)
	assert.Equal(t, 1, calls, "第二次应命中缓存")

	CacheDelete(AdminKey(7))
	_, _ = Load(AdminKey(7), time.Minute, load)
	assert.Equal(t, 2, calls)
}

func TestLoad_ErrorNotCached(t *testing.T) {
	CacheFlush()
	boom := errors.New("boom")

	_, err := Load(KeyActiveChannels, time.Minute, func() ([]string, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	v, err := Load(KeyActiveChannels, time.Minute, func() ([]string, error) {
		return []string{"-1001"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"-1001"}, v)
}

func TestLoad_TypeMismatchReloads(t *testing.T) {
	CacheFlush()
	Cache.Set(KeyActiveButtons, "stale", time.Minute)

	v, err := Load(KeyActiveButtons, time.Minute, func() (int, error) {
		return 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "admin:42", AdminKey(42))
	assert.Equal(t, "chat:@premium", ChatKey("@Premium"))
}
