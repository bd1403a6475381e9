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

// TagRepo implements TagRepository using PostgreSQL.
type TagRepo struct{ db *DB }

// NewTagRepo constructs a tag repository.
func NewTagRepo(db *DB) *TagRepo { return &TagRepo{db: db} }

const tagColumns = `vault_id, tag_id, nonce_content, ciphertext_content, tag_token, etag, version, size, created_at, updated_at, deleted_at`

// Create inserts a tag with version 1.
func (r *TagRepo) Create(ctx context.Context, t *model.Tag) error {
	const q = `
INSERT INTO tags (vault_id, tag_id, nonce_content, ciphertext_content, tag_token, etag, version, size, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Pool.Exec(ctx, q,
		t.VaultID, t.TagID,
		t.NonceContent, t.CiphertextContent, t.TagToken,
		t.ETag, t.Version, t.Size, t.CreatedAt, t.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// Update replaces the blobs and token of a live tag under row lock.
func (r *TagRepo) Update(ctx context.Context, t *model.Tag, ifMatch string) (err error) {
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

	const sel = `SELECT version, etag, deleted_at FROM tags WHERE vault_id=$1 AND tag_id=$2 FOR UPDATE`
	var (
		curVer    int64
		curETag   string
		deletedAt *int64
	)
	if err = tx.QueryRow(ctx, sel, t.VaultID, t.TagID).Scan(&curVer, &curETag, &deletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	if deletedAt != nil {
		return errs.ErrNotFound
	}
	if t.Version != curVer+1 {
		return errs.ErrConflict
	}
	if ifMatch != curETag {
		return errs.ErrConflict
	}

	const upd = `
UPDATE tags
SET nonce_content=$3, ciphertext_content=$4, tag_token=$5, etag=$6, version=$7, size=$8, updated_at=$9
WHERE vault_id=$1 AND tag_id=$2`
	_, err = tx.Exec(ctx, upd,
		t.VaultID, t.TagID,
		t.NonceContent, t.CiphertextContent, t.TagToken,
		t.ETag, t.Version, t.Size, t.UpdatedAt,
	)
	return err
}

// SoftDelete tombstones a live tag and returns the updated row.
func (r *TagRepo) SoftDelete(ctx context.Context, vaultID, tagID string, version, deletedAt int64, ifMatch string) (out *model.Tag, err error) {
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

	const sel = `SELECT ` + tagColumns + ` FROM tags WHERE vault_id=$1 AND tag_id=$2 FOR UPDATE`
	var t model.Tag
	err = tx.QueryRow(ctx, sel, vaultID, tagID).Scan(
		&t.VaultID, &t.TagID,
		&t.NonceContent, &t.CiphertextContent, &t.TagToken,
		&t.ETag, &t.Version, &t.Size, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if t.DeletedAt != nil {
		return nil, errs.ErrNotFound
	}
	if version != t.Version+1 {
		return nil, errs.ErrConflict
	}
	if ifMatch != t.ETag {
		return nil, errs.ErrConflict
	}

	newETag := crypto.ComputeETag(vaultID, version, t.PersistedBytes()...)
	const upd = `
UPDATE tags SET etag=$3, version=$4, deleted_at=$5, updated_at=$5
WHERE vault_id=$1 AND tag_id=$2`
	if _, err = tx.Exec(ctx, upd, vaultID, tagID, newETag, version, deletedAt); err != nil {
		return nil, err
	}

	t.ETag = newETag
	t.Version = version
	t.DeletedAt = &deletedAt
	t.UpdatedAt = deletedAt
	return &t, nil
}

// Get returns the full record including the tombstone marker.
func (r *TagRepo) Get(ctx context.Context, vaultID, tagID string) (*model.Tag, error) {
	const q = `SELECT ` + tagColumns + ` FROM tags WHERE vault_id=$1 AND tag_id=$2`
	row := r.db.Pool.QueryRow(ctx, q, vaultID, tagID)
	var t model.Tag
	err := row.Scan(
		&t.VaultID, &t.TagID,
		&t.NonceContent, &t.CiphertextContent, &t.TagToken,
		&t.ETag, &t.Version, &t.Size, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// List returns rows ordered ascending by tag id. ByToken distinguishes an
// explicit empty string (rows with no blind index) from token equality.
func (r *TagRepo) List(ctx context.Context, vaultID string, f model.ListFilter) ([]model.Tag, error) {
	q := `SELECT ` + tagColumns + ` FROM tags WHERE vault_id=$1`
	args := []any{vaultID}
	if !f.IncludeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	if f.Cursor != "" {
		args = append(args, f.Cursor)
		q += fmt.Sprintf(` AND tag_id > $%d`, len(args))
	}
	if f.UpdatedAfter != nil {
		args = append(args, *f.UpdatedAfter)
		q += fmt.Sprintf(` AND updated_at > $%d`, len(args))
	}
	if f.ByToken != nil {
		if *f.ByToken == "" {
			q += ` AND tag_token IS NULL`
		} else {
			args = append(args, *f.ByToken)
			q += fmt.Sprintf(` AND tag_token = $%d`, len(args))
		}
	}
	q += ` ORDER BY tag_id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Tag
	for rows.Next() {
		var t model.Tag
		if err = rows.Scan(
			&t.VaultID, &t.TagID,
			&t.NonceContent, &t.CiphertextContent, &t.TagToken,
			&t.ETag, &t.Version, &t.Size, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
