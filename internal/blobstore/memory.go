package blobstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/alexkarev/homekeeper/internal/common"
)

// MemoryStore keeps blobs in a map. It is a first-class Store implementation
// used in tests and offline development.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Store(_ context.Context, data []byte, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle := fmt.Sprintf("mem/%s/%s", uuid.NewString(), name)
	cp := make([]byte, len(data))
	copy(cp, data)
	m.blobs[handle] = cp
	return handle, nil
}

func (m *MemoryStore) Load(_ context.Context, handle string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.blobs[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrBlobUnavailable, handle)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *MemoryStore) CleanupTemporary(context.Context) error { return nil }

// Len reports the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}
