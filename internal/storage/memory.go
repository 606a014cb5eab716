package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStorage is an in-memory implementation of the Storage interface,
// useful for testing. Safe for concurrent use.
type MemoryStorage struct {
	name    string
	mu      sync.RWMutex
	content map[string][]byte
}

// NewMemoryStorage creates a new in-memory backend with the given name.
func NewMemoryStorage(name string) *MemoryStorage {
	return &MemoryStorage{name: name, content: make(map[string][]byte)}
}

// Put stores content under key, replacing any existing content.
func (m *MemoryStorage) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[key] = data
	return nil
}

// Open returns a reader for the content under key.
func (m *MemoryStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.content[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the content under key.
func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.content, key)
	return nil
}

// ValidateSetup always succeeds for the in-memory backend.
func (m *MemoryStorage) ValidateSetup(ctx context.Context) error { return nil }

// Len reports how many keys are stored. For tests.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.content)
}

// Compile-time check that MemoryStorage implements the Storage interface
var _ Storage = (*MemoryStorage)(nil)
