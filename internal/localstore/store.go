// Package localstore persists the canonical object graph (items,
// categories) in sqlite. The sync engine borrows read access during backup
// and writes back during restore; each insert is an independent unit so a
// concurrent local edit cannot corrupt a half-finished restore.
package localstore

import (
	"context"

	"github.com/alexkarev/homekeeper/internal/models"
)

// Store is the local-store collaborator consumed by the sync engine.
// Insert methods are upserts keyed by entity ID; Existing returns nil (no
// error) when the entity is not present.
type Store interface {
	FetchAllItems(ctx context.Context) ([]models.Item, error)
	FetchAllCategories(ctx context.Context) ([]models.Category, error)

	InsertItem(ctx context.Context, item *models.Item) error
	InsertCategory(ctx context.Context, cat *models.Category) error

	ExistingItem(ctx context.Context, id string) (*models.Item, error)
	ExistingCategory(ctx context.Context, id string) (*models.Category, error)
}
