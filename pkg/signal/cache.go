package signal

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// CacheStats 缓存统计信息
type CacheStats struct {
	// 当前缓存大小
	Size int

	// 命中次数
	Hits int

	// 未命中次数
	Misses int

	// 命中率
	HitRate float64
}

// cacheEntry 缓存条目
type cacheEntry struct {
	signal     Signal
	expiry     time.Time
	lastAccess time.Time
}

// SignalCache 信号缓存
// 相同内容的分析结果按内容哈希缓存，避免重复调用分析服务
type SignalCache struct {
	data       map[string]cacheEntry
	maxEntries int
	ttl        time.Duration
	mu         sync.RWMutex

	hits   int
	misses int
}

// NewSignalCache 创建信号缓存
func NewSignalCache(maxEntries int, ttl time.Duration) *SignalCache {
	return &SignalCache{
		data:       make(map[string]cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get 查询缓存的信号
func (c *SignalCache) Get(modality Modality, content string) (Signal, bool) {
	key := cacheKey(modality, content)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok || time.Now().After(entry.expiry) {
		if ok {
			delete(c.data, key)
		}
		c.misses++
		return Signal{}, false
	}

	entry.lastAccess = time.Now()
	c.data[key] = entry
	c.hits++
	return entry.signal, true
}

// Set 写入信号，超出容量时淘汰最久未访问的条目
func (c *SignalCache) Set(modality Modality, content string, sig Signal) {
	key := cacheKey(modality, content)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxEntries {
		c.evictOldest()
	}

	c.data[key] = cacheEntry{
		signal:     sig,
		expiry:     now.Add(c.ttl),
		lastAccess: now,
	}
}

// evictOldest 淘汰最久未访问的条目，调用方需持有写锁
func (c *SignalCache) evictOldest() {
	var oldestKey string
	var oldestAccess time.Time
	for key, entry := range c.data {
		if oldestKey == "" || entry.lastAccess.Before(oldestAccess) {
			oldestKey = key
			oldestAccess = entry.lastAccess
		}
	}
	if oldestKey != "" {
		delete(c.data, oldestKey)
	}
}

// GetStats 获取缓存统计信息
func (c *SignalCache) GetStats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		Size:   len(c.data),
		Hits:   c.hits,
		Misses: c.misses,
	}

	total := c.hits + c.misses
	if total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// cacheKey 用SHA-256生成缓存键
func cacheKey(modality Modality, content string) string {
	hasher := sha256.New()
	hasher.Write([]byte(modality))
	hasher.Write([]byte{0})
	hasher.Write([]byte(content))
	return hex.EncodeToString(hasher.Sum(nil))
}
