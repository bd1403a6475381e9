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

func testManifest(version int64) *model.Manifest {
	return &model.Manifest{
		VaultID:    "vlt_1",
		Version:    version,
		ETag:       "etag-new",
		Nonce:      []byte("nonce"),
		Ciphertext: []byte("ciphertext"),
		Size:       10,
		UpdatedAt:  999,
	}
}

func TestVaultRepo_UpsertManifest_FirstWrite(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewVaultRepo(db)

	m := testManifest(1)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT version FROM vaults WHERE id=\$1 FOR UPDATE`).
		WithArgs("vlt_1").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(0)))
	mock.ExpectExec(`INSERT INTO manifests`).
		WithArgs(m.VaultID, m.Version, m.ETag, m.Nonce, m.Ciphertext, m.Size, m.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE vaults SET version=\$2, bytes_total=\$3, updated_at=\$4 WHERE id=\$1`).
		WithArgs(m.VaultID, m.Version, m.Size, m.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	created, err := r.UpsertManifest(context.Background(), m, nil)
	require.NoError(t, err)
	require.True(t, created)
}

func TestVaultRepo_UpsertManifest_VersionConflict(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewVaultRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT version FROM vaults WHERE id=\$1 FOR UPDATE`).
		WithArgs("vlt_1").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(3)))
	mock.ExpectRollback()

	_, err := r.UpsertManifest(context.Background(), testManifest(1), nil)
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestVaultRepo_UpsertManifest_RequiresIfMatchAfterFirstWrite(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewVaultRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT version FROM vaults WHERE id=\$1 FOR UPDATE`).
		WithArgs("vlt_1").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(1)))
	mock.ExpectRollback()

	_, err := r.UpsertManifest(context.Background(), testManifest(2), nil)
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestVaultRepo_UpsertManifest_StaleIfMatch(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewVaultRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT version FROM vaults WHERE id=\$1 FOR UPDATE`).
		WithArgs("vlt_1").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(1)))
	mock.ExpectQuery(`SELECT etag FROM manifests WHERE vault_id=\$1`).
		WithArgs("vlt_1").
		WillReturnRows(pgxmock.NewRows([]string{"etag"}).AddRow("etag-current"))
	mock.ExpectRollback()

	stale := "etag-stale"
	_, err := r.UpsertManifest(context.Background(), testManifest(2), &stale)
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestVaultRepo_UpsertManifest_VaultMissing(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewVaultRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT version FROM vaults WHERE id=\$1 FOR UPDATE`).
		WithArgs("vlt_1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := r.UpsertManifest(context.Background(), testManifest(1), nil)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestVaultRepo_Ensure_RaceLoserReadsWinner(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewVaultRepo(db)

	v := &model.Vault{ID: "vlt_new", UserID: "u_1", UpdatedAt: 5}
	mock.ExpectExec(`INSERT INTO vaults`).
		WithArgs(v.ID, v.UserID, v.Version, v.BytesTotal, v.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`SELECT id, user_id, version, bytes_total, updated_at FROM vaults WHERE user_id=\$1`).
		WithArgs("u_1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "version", "bytes_total", "updated_at"}).
			AddRow("vlt_winner", "u_1", int64(2), int64(64), int64(3)))

	got, err := r.Ensure(context.Background(), v)
	require.NoError(t, err)
	require.Equal(t, "vlt_winner", got.ID)
	require.Equal(t, int64(2), got.Version)
}
