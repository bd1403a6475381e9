package postgres

import (
	"context"
	"errors"

	"github.com/aoculi/sanctuary/internal/errs"
	"github.com/aoculi/sanctuary/internal/model"
	"github.com/jackc/pgx/v5"
)

// VaultRepo implements VaultRepository using PostgreSQL.
type VaultRepo struct{ db *DB }

// NewVaultRepo constructs a vault repository.
func NewVaultRepo(db *DB) *VaultRepo { return &VaultRepo{db: db} }

// GetByUserID selects the user's vault.
func (r *VaultRepo) GetByUserID(ctx context.Context, userID string) (*model.Vault, error) {
	const q = `SELECT id, user_id, version, bytes_total, updated_at FROM vaults WHERE user_id=$1`
	row := r.db.Pool.QueryRow(ctx, q, userID)
	var v model.Vault
	if err := row.Scan(&v.ID, &v.UserID, &v.Version, &v.BytesTotal, &v.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Ensure inserts the vault if the user has none yet and returns the current
// row. Concurrent first accesses race on the user_id uniqueness constraint;
// whichever insert loses simply reads the winner's row.
func (r *VaultRepo) Ensure(ctx context.Context, v *model.Vault) (*model.Vault, error) {
	const ins = `
INSERT INTO vaults (id, user_id, version, bytes_total, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.Pool.Exec(ctx, ins, v.ID, v.UserID, v.Version, v.BytesTotal, v.UpdatedAt); err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, v.UserID)
}

// GetManifest selects the vault's manifest blob.
func (r *VaultRepo) GetManifest(ctx context.Context, vaultID string) (*model.Manifest, error) {
	const q = `
SELECT vault_id, version, etag, nonce, ciphertext, size, updated_at
FROM manifests WHERE vault_id=$1`
	row := r.db.Pool.QueryRow(ctx, q, vaultID)
	var m model.Manifest
	if err := row.Scan(&m.VaultID, &m.Version, &m.ETag, &m.Nonce, &m.Ciphertext, &m.Size, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// HasManifest reports whether a manifest row exists for the vault.
func (r *VaultRepo) HasManifest(ctx context.Context, vaultID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM manifests WHERE vault_id=$1)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, vaultID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// UpsertManifest commits a manifest write with version sequencing and ETag
// guard. The vault row is locked for the duration of the check-and-write so
// concurrent writers serialize; the loser observes a stale version or ETag
// and gets ErrConflict.
func (r *VaultRepo) UpsertManifest(ctx context.Context, m *model.Manifest, ifMatch *string) (created bool, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
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

	const sel = `SELECT version FROM vaults WHERE id=$1 FOR UPDATE`
	var curVer int64
	if err = tx.QueryRow(ctx, sel, m.VaultID).Scan(&curVer); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, errs.ErrNotFound
		}
		return false, err
	}
	if m.Version != curVer+1 {
		return false, errs.ErrConflict
	}
	if curVer > 0 {
		if ifMatch == nil {
			return false, errs.ErrConflict
		}
		const selETag = `SELECT etag FROM manifests WHERE vault_id=$1`
		var curETag string
		if err = tx.QueryRow(ctx, selETag, m.VaultID).Scan(&curETag); err != nil {
			return false, err
		}
		if *ifMatch != curETag {
			return false, errs.ErrConflict
		}
	}

	const ups = `
INSERT INTO manifests (vault_id, version, etag, nonce, ciphertext, size, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (vault_id) DO UPDATE
SET version=EXCLUDED.version, etag=EXCLUDED.etag, nonce=EXCLUDED.nonce,
    ciphertext=EXCLUDED.ciphertext, size=EXCLUDED.size, updated_at=EXCLUDED.updated_at`
	if _, err = tx.Exec(ctx, ups, m.VaultID, m.Version, m.ETag, m.Nonce, m.Ciphertext, m.Size, m.UpdatedAt); err != nil {
		return false, err
	}

	const upd = `UPDATE vaults SET version=$2, bytes_total=$3, updated_at=$4 WHERE id=$1`
	if _, err = tx.Exec(ctx, upd, m.VaultID, m.Version, m.Size, m.UpdatedAt); err != nil {
		return false, err
	}
	return curVer == 0, nil
}
