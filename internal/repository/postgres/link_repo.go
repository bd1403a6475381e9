package postgres

import (
	"context"

	"github.com/aoculi/sanctuary/internal/model"
)

// LinkRepo implements LinkRepository using PostgreSQL.
type LinkRepo struct{ db *DB }

// NewLinkRepo constructs a link repository.
func NewLinkRepo(db *DB) *LinkRepo { return &LinkRepo{db: db} }

// Link inserts the association row if absent. ON CONFLICT DO NOTHING keeps
// the operation idempotent; the command tag reports whether a row was added.
func (r *LinkRepo) Link(ctx context.Context, l *model.BookmarkTag) (bool, error) {
	const q = `
INSERT INTO bookmark_tags (vault_id, item_id, tag_id, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (vault_id, item_id, tag_id) DO NOTHING`
	tag, err := r.db.Pool.Exec(ctx, q, l.VaultID, l.ItemID, l.TagID, l.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Unlink deletes the association row if present.
func (r *LinkRepo) Unlink(ctx context.Context, vaultID, itemID, tagID string) (bool, error) {
	const q = `DELETE FROM bookmark_tags WHERE vault_id=$1 AND item_id=$2 AND tag_id=$3`
	tag, err := r.db.Pool.Exec(ctx, q, vaultID, itemID, tagID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// TagsOf returns the ids of live tags linked to the bookmark, ascending.
func (r *LinkRepo) TagsOf(ctx context.Context, vaultID, itemID string) ([]string, error) {
	const q = `
SELECT bt.tag_id
FROM bookmark_tags bt
JOIN tags t ON t.vault_id = bt.vault_id AND t.tag_id = bt.tag_id
WHERE bt.vault_id=$1 AND bt.item_id=$2 AND t.deleted_at IS NULL
ORDER BY bt.tag_id ASC`
	rows, err := r.db.Pool.Query(ctx, q, vaultID, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
