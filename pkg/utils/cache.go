// Package utils 进程内缓存：管理员判定、启用频道、自定义按钮、频道解析
package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// 缓存键
const (
	KeyActiveChannels = "channels:active"
	KeyActiveButtons  = "buttons:active"
)

// Cache 全局缓存实例
var Cache *cache.Cache

func init() {
	// 默认过期时间 5 分钟，清理间隔 10 分钟
	Cache = cache.New(5*time.Minute, 10*time.Minute)
}

// AdminKey 管理员判定缓存键
func AdminKey(userID int64) string {
	return fmt.Sprintf("admin:%d", userID)
}

// ChatKey @用户名 解析结果缓存键，不区分大小写
func ChatKey(username string) string {
	return "chat:" + strings.ToLower(username)
}

// CacheDelete 删除一个或多个缓存键，写操作后调用
func CacheDelete(keys ...string) {
	for _, k := range keys {
		Cache.Delete(k)
	}
}

// CacheFlush 清空缓存
func CacheFlush() {
	Cache.Flush()
}

// Load 命中缓存直接返回，否则调用 fn 并缓存结果；fn 出错时不缓存
func Load[T any](key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	if val, found := Cache.Get(key); found {
		if v, ok := val.(T); ok {
			return v, nil
		}
		// 类型不符说明键被复用，丢弃旧值
		Cache.Delete(key)
	}

	v, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}

	Cache.Set(key, v, ttl)
	return v, nil
}
