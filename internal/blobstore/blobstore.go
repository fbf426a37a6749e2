// Package blobstore abstracts binary attachment storage (item photos,
// scanned receipts). Records carry only handles returned by Store; the
// bytes themselves live in an S3-compatible object store.
package blobstore

import "context"

// Store persists binary payloads and resolves them back by handle.
//
// Contract:
//   - Store: persist data under a generated handle; name is a hint only.
//   - Load: resolve a handle back to the stored bytes.
//   - CleanupTemporary: remove any local staging copies. Called
//     unconditionally when a sync operation ends, success or failure.
type Store interface {
	Store(ctx context.Context, data []byte, name string) (handle string, err error)
	Load(ctx context.Context, handle string) ([]byte, error)
	CleanupTemporary(ctx context.Context) error
}
