package storage

import (
	"context"
	"sync"

	"github.com/rl1809/cartstore/internal/port"
)

// MemoryAdapter is a process-local snapshot store. Snapshots do not survive
// a restart; it is meant for local runs without Redis.
type MemoryAdapter struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{blobs: make(map[string][]byte)}
}

func (m *MemoryAdapter) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.blobs[key]
	if !ok {
		return nil, port.ErrSnapshotNotFound
	}
	return append([]byte(nil), blob...), nil
}

func (m *MemoryAdapter) Save(ctx context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return nil
}
