package cache

import (
	"sync"
	"time"
)

// Entry 缓存条目，写入后不再修改
type Entry[V any] struct {
	Value     V
	FetchedAt time.Time
}

// Age 返回条目在 now 时刻的年龄
func (e Entry[V]) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Options 缓存边界
type Options struct {
	TTL        time.Duration // 新鲜期，<=0 表示永远新鲜
	MaxEntries int           // 最大条目数，<=0 表示不限制
	Now        func() time.Time
}

// Store 内存缓存，按 key 覆盖写入。过期条目不会被主动删除，由调用方判断是否刷新
type Store[V any] struct {
	mu      sync.Mutex
	entries map[string]Entry[V]
	ttl     time.Duration
	max     int
	now     func() time.Time
}

// New 创建缓存实例
func New[V any](opts Options) *Store[V] {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store[V]{
		entries: make(map[string]Entry[V]),
		ttl:     opts.TTL,
		max:     opts.MaxEntries,
		now:     now,
	}
}

// Get 返回 key 对应的条目（无论新旧）以及是否仍在新鲜期内
func (s *Store[V]) Get(key string) (entry Entry[V], fresh bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok = s.entries[key]
	if !ok {
		return entry, false, false
	}
	return entry, s.isFresh(entry), true
}

// GetFresh 仅返回新鲜期内的值
func (s *Store[V]) GetFresh(key string) (V, bool) {
	entry, fresh, ok := s.Get(key)
	if !ok || !fresh {
		var zero V
		return zero, false
	}
	return entry.Value, true
}

// Put 写入（覆盖）条目，超出容量时淘汰最早抓取的条目
func (s *Store[V]) Put(key string, value V) Entry[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry[V]{Value: value, FetchedAt: s.now()}
	s.entries[key] = entry

	if s.max > 0 {
		for len(s.entries) > s.max {
			s.evictOldest(key)
		}
	}
	return entry
}

// Len 返回当前条目数
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// TTL 返回新鲜期
func (s *Store[V]) TTL() time.Duration {
	return s.ttl
}

func (s *Store[V]) isFresh(e Entry[V]) bool {
	if s.ttl <= 0 {
		return true
	}
	return e.Age(s.now()) < s.ttl
}

// evictOldest 淘汰最早的条目，keep 为刚写入的 key
func (s *Store[V]) evictOldest(keep string) {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range s.entries {
		if k == keep {
			continue
		}
		if !found || e.FetchedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.FetchedAt, true
		}
	}
	if !found {
		return
	}
	delete(s.entries, oldestKey)
}
