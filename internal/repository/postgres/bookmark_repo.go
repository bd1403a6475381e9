package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/aoculi/sanctuary/internal/crypto"
	"github.com/aoculi/sanctuary/internal/errs"
	"github.com/aoculi/sanctuary/internal/model"
	"github.com/jackc/pgx/v5"
)

// BookmarkRepo implements BookmarkRepository using PostgreSQL.
type BookmarkRepo struct{ db *DB }

// NewBookmarkRepo constructs a bookmark repository.
func NewBookmarkRepo(db *DB) *BookmarkRepo { return &BookmarkRepo{db: db} }

const bookmarkColumns = `vault_id, item_id, nonce_content, ciphertext_content, nonce_wrap, dek_wrapped, etag, version, size, created_at, updated_at, deleted_at`

// Create inserts a bookmark with version 1. The composite primary key
// (vault_id, item_id) maps duplicate ids to ErrConflict.
func (r *BookmarkRepo) Create(ctx context.Context, b *model.Bookmark) error {
	const q = `
INSERT INTO bookmarks (vault_id, item_id, nonce_content, ciphertext_content, nonce_wrap, dek_wrapped, etag, version, size, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.Pool.Exec(ctx, q,
		b.VaultID, b.ItemID,
		b.NonceContent, b.CiphertextContent, b.NonceWrap, b.DEKWrapped,
		b.ETag, b.Version, b.Size, b.CreatedAt, b.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// Update replaces the blobs of a live bookmark under row lock, checking
// version sequence and ETag before writing.
func (r *BookmarkRepo) Update(ctx context.Context, b *model.Bookmark, ifMatch string) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT version, etag, deleted_at FROM bookmarks WHERE vault_id=$1 AND item_id=$2 FOR UPDATE`
	var (
		curVer    int64
		curETag   string
		deletedAt *int64
	)
	if err = tx.QueryRow(ctx, sel, b.VaultID, b.ItemID).Scan(&curVer, &curETag, &deletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	if deletedAt != nil {
		return errs.ErrNotFound
	}
	if b.Version != curVer+1 {
		return errs.ErrConflict
	}
	if ifMatch != curETag {
		return errs.ErrConflict
	}

	const upd = `
UPDATE bookmarks
SET nonce_content=$3, ciphertext_content=$4, nonce_wrap=$5, dek_wrapped=$6,
    etag=$7, version=$8, size=$9, updated_at=$10
WHERE vault_id=$1 AND item_id=$2`
	_, err = tx.Exec(ctx, upd,
		b.VaultID, b.ItemID,
		b.NonceContent, b.CiphertextContent, b.NonceWrap, b.DEKWrapped,
		b.ETag, b.Version, b.Size, b.UpdatedAt,
	)
	return err
}

// SoftDelete tombstones a live bookmark. The new ETag commits to the
// unchanged blobs under the new version, so it differs from the pre-delete
// tag. A second delete finds the tombstone and reports not found.
func (r *BookmarkRepo) SoftDelete(ctx context.Context, vaultID, itemID string, version, deletedAt int64, ifMatch string) (out *model.Bookmark, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE vault_id=$1 AND item_id=$2 FOR UPDATE`
	var b model.Bookmark
	err = tx.QueryRow(ctx, sel, vaultID, itemID).Scan(
		&b.VaultID, &b.ItemID,
		&b.NonceContent, &b.CiphertextContent, &b.NonceWrap, &b.DEKWrapped,
		&b.ETag, &b.Version, &b.Size, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if b.DeletedAt != nil {
		return nil, errs.ErrNotFound
	}
	if version != b.Version+1 {
		return nil, errs.ErrConflict
	}
	if ifMatch != b.ETag {
		return nil, errs.ErrConflict
	}

	newETag := crypto.ComputeETag(vaultID, version, b.PersistedBytes()...)
	const upd = `
UPDATE bookmarks SET etag=$3, version=$4, deleted_at=$5, updated_at=$5
WHERE vault_id=$1 AND item_id=$2`
	if _, err = tx.Exec(ctx, upd, vaultID, itemID, newETag, version, deletedAt); err != nil {
		return nil, err
	}

	b.ETag = newETag
	b.Version = version
	b.DeletedAt = &deletedAt
	b.UpdatedAt = deletedAt
	return &b, nil
}

// Get returns the full record including the tombstone marker.
func (r *BookmarkRepo) Get(ctx context.Context, vaultID, itemID string) (*model.Bookmark, error) {
	const q = `SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE vault_id=$1 AND item_id=$2`
	row := r.db.Pool.QueryRow(ctx, q, vaultID, itemID)
	var b model.Bookmark
	err := row.Scan(
		&b.VaultID, &b.ItemID,
		&b.NonceContent, &b.CiphertextContent, &b.NonceWrap, &b.DEKWrapped,
		&b.ETag, &b.Version, &b.Size, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// List returns rows ordered ascending by item id. The id is the sole sort
// key; the cursor resumes strictly after it.
func (r *BookmarkRepo) List(ctx context.Context, vaultID string, f model.ListFilter) ([]model.Bookmark, error) {
	q := `SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE vault_id=$1`
	args := []any{vaultID}
	if !f.IncludeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	if f.Cursor != "" {
		args = append(args, f.Cursor)
		q += fmt.Sprintf(` AND item_id > $%d`, len(args))
	}
	if f.UpdatedAfter != nil {
		args = append(args, *f.UpdatedAfter)
		q += fmt.Sprintf(` AND updated_at > $%d`, len(args))
	}
	q += ` ORDER BY item_id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Bookmark
	for rows.Next() {
		var b model.Bookmark
		if err = rows.Scan(
			&b.VaultID, &b.ItemID,
			&b.NonceContent, &b.CiphertextContent, &b.NonceWrap, &b.DEKWrapped,
			&b.ETag, &b.Version, &b.Size, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
