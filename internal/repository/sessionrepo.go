package repository

import (
	"context"

	"github.com/aoculi/sanctuary/internal/model"
)

// SessionRepository persists issued bearer-token sessions. A session is
// active iff it exists, RevokedAt is nil, and ExpiresAt > now.
type SessionRepository interface {
	// Create inserts a new session row.
	Create(ctx context.Context, s *model.Session) error
	// GetByJWTID loads a session by its token identifier claim.
	GetByJWTID(ctx context.Context, jwtID string) (*model.Session, error)
	// RevokeByJWTID sets RevokedAt; revoking an already-revoked session is a no-op.
	RevokeByJWTID(ctx context.Context, jwtID string, at int64) error
	// UpdateExpiration extends the validity window; used by refresh.
	UpdateExpiration(ctx context.Context, jwtID string, expiresAt int64) error
	// DeleteExpired physically removes sessions with ExpiresAt < before.
	DeleteExpired(ctx context.Context, before int64) error
}
