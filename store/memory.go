package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rushteam/recflow/core"
)

// MemoryStore 是内存实现的 ConfigStore，用于测试/开发/本地编排。
// 进程重启后数据丢失。
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	// revisions 记录每个 key 的写入次数，便于确认发布是否生效
	revisions map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:      make(map[string][]byte),
		revisions: make(map[string]int64),
	}
}

func (m *MemoryStore) Name() string { return KindMemory }

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), value...)
	m.revisions[key]++
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Revision 返回 key 被写入的次数，删除不会重置。
func (m *MemoryStore) Revision(key string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.revisions[key]
}

// Keys 返回 prefix 下的所有 key（已排序）。
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (m *MemoryStore) Close() error {
	return nil
}

var _ core.ConfigStore = (*MemoryStore)(nil)
