package repository

import (
	"context"

	"github.com/aoculi/sanctuary/internal/model"
)

// LinkRepository manages the bookmark-tag association rows. Existence and
// liveness of the endpoints are the service layer's concern; the repository
// only guarantees idempotent row insertion and deletion.
type LinkRepository interface {
	// Link inserts the association row if absent. Reports whether a new row
	// was created.
	Link(ctx context.Context, l *model.BookmarkTag) (created bool, err error)
	// Unlink deletes the association row if present. Reports whether a row
	// existed.
	Unlink(ctx context.Context, vaultID, itemID, tagID string) (existed bool, err error)
	// TagsOf returns the ids of live tags currently linked to the bookmark.
	TagsOf(ctx context.Context, vaultID, itemID string) ([]string, error)
}
