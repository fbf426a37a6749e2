package blobstore

import (
	"context"
	"fmt"

	"github.com/alexkarev/homekeeper/internal/common"
	"github.com/alexkarev/homekeeper/internal/cryptox"
)

// EncryptedStore wraps another Store and encrypts payloads at rest with
// AES-GCM. Handles are passed through untouched, so the wrapped store does
// not need to know the data is sealed.
type EncryptedStore struct {
	inner Store
	key   []byte
}

// NewEncryptedStore wraps inner with at-rest encryption under key
// (16/24/32 bytes, e.g. from cryptox.DeriveKey).
func NewEncryptedStore(inner Store, key []byte) *EncryptedStore {
	return &EncryptedStore{inner: inner, key: key}
}

func (e *EncryptedStore) Store(ctx context.Context, data []byte, name string) (string, error) {
	sealed, err := cryptox.EncryptBlob(data, e.key)
	if err != nil {
		return "", fmt.Errorf("encrypting blob: %w", err)
	}
	return e.inner.Store(ctx, sealed, name)
}

func (e *EncryptedStore) Load(ctx context.Context, handle string) ([]byte, error) {
	sealed, err := e.inner.Load(ctx, handle)
	if err != nil {
		return nil, err
	}
	data, err := cryptox.DecryptBlob(sealed, e.key)
	if err != nil {
		// Wrong key or corrupt object: the blob exists but cannot be used.
		return nil, fmt.Errorf("%w: %s: %v", common.ErrBlobUnavailable, handle, err)
	}
	return data, nil
}

func (e *EncryptedStore) CleanupTemporary(ctx context.Context) error {
	return e.inner.CleanupTemporary(ctx)
}
