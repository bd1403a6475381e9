package repository

import (
	"context"

	"github.com/aoculi/sanctuary/internal/model"
)

// TagRepository provides versioned access to encrypted tag records. The
// contract mirrors BookmarkRepository; tags additionally carry an optional
// blind-index token usable as an equality filter in List.
type TagRepository interface {
	// Create inserts a new tag with version 1.
	Create(ctx context.Context, t *model.Tag) error
	// Update replaces the blobs and token of a live tag.
	Update(ctx context.Context, t *model.Tag, ifMatch string) error
	// SoftDelete tombstones a live tag and returns the updated row.
	SoftDelete(ctx context.Context, vaultID, tagID string, version, deletedAt int64, ifMatch string) (*model.Tag, error)
	// Get returns the full record including the tombstone marker.
	Get(ctx context.Context, vaultID, tagID string) (*model.Tag, error)
	// List returns up to f.Limit rows ordered ascending by tag id. When
	// f.ByToken is set, an empty string matches rows with a NULL token and
	// any other value matches token equality.
	List(ctx context.Context, vaultID string, f model.ListFilter) ([]model.Tag, error)
}
