package repository

import (
	"context"

	"github.com/aoculi/sanctuary/internal/model"
)

// BookmarkRepository provides versioned access to encrypted bookmark records.
// Guarded writes run in a transaction that re-reads the current row under a
// row lock and checks version and ETag before mutating.
type BookmarkRepository interface {
	// Create inserts a new bookmark with version 1.
	// Returns errs.ErrConflict when the item id already exists in the vault.
	Create(ctx context.Context, b *model.Bookmark) error
	// Update replaces the blobs of a live bookmark. b.Version must equal the
	// current version + 1 and ifMatch the current ETag.
	Update(ctx context.Context, b *model.Bookmark, ifMatch string) error
	// SoftDelete tombstones a live bookmark, recomputing the ETag over the
	// unchanged blobs and the new version. Returns the updated row.
	SoftDelete(ctx context.Context, vaultID, itemID string, version, deletedAt int64, ifMatch string) (*model.Bookmark, error)
	// Get returns the full record including the tombstone marker.
	Get(ctx context.Context, vaultID, itemID string) (*model.Bookmark, error)
	// List returns up to f.Limit rows ordered ascending by item id, starting
	// strictly after f.Cursor when set.
	List(ctx context.Context, vaultID string, f model.ListFilter) ([]model.Bookmark, error)
}
