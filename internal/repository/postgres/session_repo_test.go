package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/aoculi/sanctuary/internal/errs"
	"github.com/aoculi/sanctuary/internal/model"
)

func TestSessionRepo_CreateAndGet(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)
	ctx := context.Background()

	s := &model.Session{ID: "s_1", UserID: "u_1", JWTID: "jti-1", ExpiresAt: 1000, CreatedAt: 500}
	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(s.ID, s.UserID, s.JWTID, s.ExpiresAt, s.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, s))

	mock.ExpectQuery(`SELECT .+ FROM sessions WHERE jwt_id=\$1`).
		WithArgs("jti-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "jwt_id", "expires_at", "revoked_at", "created_at"}).
			AddRow("s_1", "u_1", "jti-1", int64(1000), nil, int64(500)))
	got, err := r.GetByJWTID(ctx, "jti-1")
	require.NoError(t, err)
	require.Equal(t, "u_1", got.UserID)
	require.Nil(t, got.RevokedAt)
}

func TestSessionRepo_Get_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)

	mock.ExpectQuery(`SELECT .+ FROM sessions WHERE jwt_id=\$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)
	_, err := r.GetByJWTID(context.Background(), "ghost")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSessionRepo_Revoke_IsIdempotent(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)
	ctx := context.Background()

	// First revocation touches the row; the second matches nothing and is
	// still a success.
	mock.ExpectExec(`UPDATE sessions SET revoked_at=\$2 WHERE jwt_id=\$1 AND revoked_at IS NULL`).
		WithArgs("jti-1", int64(700)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.RevokeByJWTID(ctx, "jti-1", 700))

	mock.ExpectExec(`UPDATE sessions SET revoked_at=\$2 WHERE jwt_id=\$1 AND revoked_at IS NULL`).
		WithArgs("jti-1", int64(800)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.NoError(t, r.RevokeByJWTID(ctx, "jti-1", 800))
}

func TestSessionRepo_UpdateExpiration(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE sessions SET expires_at=\$2 WHERE jwt_id=\$1`).
		WithArgs("jti-1", int64(9000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.UpdateExpiration(ctx, "jti-1", 9000))

	mock.ExpectExec(`UPDATE sessions SET expires_at=\$2 WHERE jwt_id=\$1`).
		WithArgs("ghost", int64(9000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.UpdateExpiration(ctx, "ghost", 9000), errs.ErrNotFound)
}

func TestSessionRepo_DeleteExpired(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)

	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at < \$1`).
		WithArgs(int64(123)).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	require.NoError(t, r.DeleteExpired(context.Background(), 123))
}
