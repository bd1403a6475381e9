package postgres

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/aoculi/sanctuary/internal/model"
)

func TestLinkRepo_Link_Idempotent(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLinkRepo(db)
	ctx := context.Background()

	l := &model.BookmarkTag{VaultID: "vlt_1", ItemID: "bm_a", TagID: "tag_a", CreatedAt: 9}

	mock.ExpectExec(`INSERT INTO bookmark_tags`).
		WithArgs(l.VaultID, l.ItemID, l.TagID, l.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	created, err := r.Link(ctx, l)
	require.NoError(t, err)
	require.True(t, created)

	// Second insert hits ON CONFLICT DO NOTHING.
	mock.ExpectExec(`INSERT INTO bookmark_tags`).
		WithArgs(l.VaultID, l.ItemID, l.TagID, l.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	created, err = r.Link(ctx, l)
	require.NoError(t, err)
	require.False(t, created)
}

func TestLinkRepo_Unlink(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLinkRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM bookmark_tags`).
		WithArgs("vlt_1", "bm_a", "tag_a").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	existed, err := r.Unlink(ctx, "vlt_1", "bm_a", "tag_a")
	require.NoError(t, err)
	require.True(t, existed)

	mock.ExpectExec(`DELETE FROM bookmark_tags`).
		WithArgs("vlt_1", "bm_a", "tag_a").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	existed, err = r.Unlink(ctx, "vlt_1", "bm_a", "tag_a")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestLinkRepo_TagsOf(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLinkRepo(db)

	mock.ExpectQuery(`SELECT bt.tag_id`).
		WithArgs("vlt_1", "bm_a").
		WillReturnRows(pgxmock.NewRows([]string{"tag_id"}).AddRow("tag_a").AddRow("tag_b"))

	got, err := r.TagsOf(context.Background(), "vlt_1", "bm_a")
	require.NoError(t, err)
	require.Equal(t, []string{"tag_a", "tag_b"}, got)
}
