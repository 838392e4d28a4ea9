package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_Serializes(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, UserKey(42))
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.Len())
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	unlock()
	unlock()
	assert.Equal(t, 0, l.Len())
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	u1, err := l.Lock(ctx, UserKey(1))
	require.NoError(t, err)
	u2, err := l.Lock(ctx, UserKey(2))
	require.NoError(t, err)
	u1()
	u2()
}

func newTestRedisLocker(t *testing.T) (*RedisLocker, redismock.ClientMock) {
	t.Helper()
	cli, mock := redismock.NewClientMock()
	l := NewRedisLocker(cli, 30*time.Second)
	l.retryDelay = time.Millisecond
	l.newToken = func() string { return "token-1" }
	return l, mock
}

func TestRedisLocker_LockUnlock(t *testing.T) {
	l, mock := newTestRedisLocker(t)
	key := UserKey(42)

	mock.ExpectSetNX(key, "token-1", 30*time.Second).SetVal(true)
	mock.ExpectEvalSha(unlockScript.Hash(), []string{key}, "token-1").SetVal(int64(1))

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	unlock()
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_Busy(t *testing.T) {
	l, mock := newTestRedisLocker(t)
	l.attempts = 2
	key := UserKey(42)

	mock.ExpectSetNX(key, "token-1", 30*time.Second).SetVal(false)
	mock.ExpectSetNX(key, "token-1", 30*time.Second).SetVal(false)

	_, err := l.Lock(context.Background(), key)
	assert.ErrorIs(t, err, ErrLockBusy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_RetriesThenAcquires(t *testing.T) {
	l, mock := newTestRedisLocker(t)
	key := UserKey(7)

	mock.ExpectSetNX(key, "token-1", 30*time.Second).SetVal(false)
	mock.ExpectSetNX(key, "token-1", 30*time.Second).SetVal(true)

	token, err := l.TryLock(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.NoError(t, mock.ExpectationsWereMet())
}
