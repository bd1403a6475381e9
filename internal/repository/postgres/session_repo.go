package postgres

import (
	"context"
	"errors"

	"github.com/aoculi/sanctuary/internal/errs"
	"github.com/aoculi/sanctuary/internal/model"
	"github.com/jackc/pgx/v5"
)

// SessionRepo implements SessionRepository using PostgreSQL.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

// Create inserts a new session row.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	const q = `
INSERT INTO sessions (id, user_id, jwt_id, expires_at, revoked_at, created_at)
VALUES ($1, $2, $3, $4, NULL, $5)`
	_, err := r.db.Pool.Exec(ctx, q, s.ID, s.UserID, s.JWTID, s.ExpiresAt, s.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// GetByJWTID selects a session by its token identifier claim.
func (r *SessionRepo) GetByJWTID(ctx context.Context, jwtID string) (*model.Session, error) {
	const q = `
SELECT id, user_id, jwt_id, expires_at, revoked_at, created_at
FROM sessions WHERE jwt_id=$1`
	row := r.db.Pool.QueryRow(ctx, q, jwtID)
	var s model.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.JWTID, &s.ExpiresAt, &s.RevokedAt, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// RevokeByJWTID sets revoked_at once; an already-revoked session is left untouched.
func (r *SessionRepo) RevokeByJWTID(ctx context.Context, jwtID string, at int64) error {
	const q = `UPDATE sessions SET revoked_at=$2 WHERE jwt_id=$1 AND revoked_at IS NULL`
	_, err := r.db.Pool.Exec(ctx, q, jwtID, at)
	return err
}

// UpdateExpiration extends the session's validity window.
func (r *SessionRepo) UpdateExpiration(ctx context.Context, jwtID string, expiresAt int64) error {
	const q = `UPDATE sessions SET expires_at=$2 WHERE jwt_id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, jwtID, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// DeleteExpired garbage-collects sessions whose expiry is behind before.
func (r *SessionRepo) DeleteExpired(ctx context.Context, before int64) error {
	const q = `DELETE FROM sessions WHERE expires_at < $1`
	_, err := r.db.Pool.Exec(ctx, q, before)
	return err
}
