package postgres

import (
	"context"
	"errors"

	"github.com/aoculi/sanctuary/internal/errs"
	"github.com/aoculi/sanctuary/internal/model"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, login, pwd_hash, kdf_algorithm, kdf_salt, kdf_memory, kdf_time, kdf_parallelism, hkdf_salt, wmk_nonce, wmk_ciphertext, created_at, updated_at`

// Create inserts a new user row. The unique index on login maps to ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, login, pwd_hash, kdf_algorithm, kdf_salt, kdf_memory, kdf_time, kdf_parallelism, hkdf_salt, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.Pool.Exec(ctx, q,
		u.ID, u.Login, u.PwdHash,
		u.KDF.Algorithm, u.KDF.Salt, u.KDF.MemoryCost, u.KDF.TimeCost, u.KDF.Parallelism, u.KDF.HKDFSalt,
		u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// GetByID selects a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByLogin selects a user by login.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE login=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, login))
}

// SetWrappedKey stores the wrapped master key.
func (r *UserRepo) SetWrappedKey(ctx context.Context, id string, wk model.WrappedKey, updatedAt int64) error {
	const q = `UPDATE users SET wmk_nonce=$2, wmk_ciphertext=$3, updated_at=$4 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, wk.Nonce, wk.Ciphertext, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u         model.User
		wmkNonce  []byte
		wmkCipher []byte
	)
	err := row.Scan(
		&u.ID, &u.Login, &u.PwdHash,
		&u.KDF.Algorithm, &u.KDF.Salt, &u.KDF.MemoryCost, &u.KDF.TimeCost, &u.KDF.Parallelism, &u.KDF.HKDFSalt,
		&wmkNonce, &wmkCipher,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if wmkNonce != nil && wmkCipher != nil {
		u.WrappedMK = &model.WrappedKey{Nonce: wmkNonce, Ciphertext: wmkCipher}
	}
	return &u, nil
}
