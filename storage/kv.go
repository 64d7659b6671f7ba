// Package storage persists opaque values under fixed keys and layers the
// report Storage Adapter on top.
package storage

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrKeyNotFound is returned by KeyValue.Get when nothing was ever stored
	// under the key.
	ErrKeyNotFound = errors.New("storage: key not found")

	// ErrUnavailable wraps any failure to reach or write the backend.
	ErrUnavailable = errors.New("storage: backend unavailable")

	// ErrCorrupt means a stored value could not be decoded.
	ErrCorrupt = errors.New("storage: stored value is corrupt")
)

// KeyValue is a persistent slot store keyed by string.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// MemoryKV keeps values in process memory. Nothing survives a restart.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}
