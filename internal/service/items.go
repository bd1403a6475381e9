package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	pkgcrypto "github.com/aoculi/sanctuary/internal/crypto"
	"github.com/aoculi/sanctuary/internal/errs"
	"github.com/aoculi/sanctuary/internal/model"
	"github.com/aoculi/sanctuary/internal/repository"
)

// List limit caps per item kind.
const (
	bookmarkListDefault = 50
	bookmarkListMax     = 200
	tagListDefault      = 100
	tagListMax          = 500
)

// BookmarkData carries the decoded blob fields of a bookmark write.
type BookmarkData struct {
	NonceContent      []byte
	CiphertextContent []byte
	NonceWrap         []byte
	DEKWrapped        []byte
	DeclaredSize      *int64
}

// TagData carries the decoded blob fields of a tag write.
type TagData struct {
	NonceContent      []byte
	CiphertextContent []byte
	TagToken          *string
	DeclaredSize      *int64
}

// ItemService provides versioned CRUD over encrypted bookmarks and tags.
// Bookmarks and tags share a state machine: absent -> live -> tombstoned,
// with every mutation advancing the version by exactly one. The service
// never interprets blob contents.
type ItemService interface {
	CreateBookmark(ctx context.Context, userID, itemID string, d BookmarkData, createdAt, updatedAt int64) (*model.Bookmark, error)
	UpdateBookmark(ctx context.Context, userID, itemID string, version int64, d BookmarkData, updatedAt int64, ifMatch string) (*model.Bookmark, error)
	DeleteBookmark(ctx context.Context, userID, itemID string, version, deletedAt int64, ifMatch string) (*model.Bookmark, error)
	GetBookmark(ctx context.Context, userID, itemID string) (*model.Bookmark, error)
	ListBookmarks(ctx context.Context, userID string, f model.ListFilter) ([]model.Bookmark, string, error)

	CreateTag(ctx context.Context, userID, tagID string, d TagData, createdAt, updatedAt int64) (*model.Tag, error)
	UpdateTag(ctx context.Context, userID, tagID string, version int64, d TagData, updatedAt int64, ifMatch string) (*model.Tag, error)
	DeleteTag(ctx context.Context, userID, tagID string, version, deletedAt int64, ifMatch string) (*model.Tag, error)
	GetTag(ctx context.Context, userID, tagID string) (*model.Tag, error)
	ListTags(ctx context.Context, userID string, f model.ListFilter) ([]model.Tag, string, error)
}

type ItemServiceImpl struct {
	vaults    repository.VaultRepository
	bookmarks repository.BookmarkRepository
	tags      repository.TagRepository
	log       *zap.Logger
}

// NewItemService constructs ItemService.
func NewItemService(
	vaults repository.VaultRepository,
	bookmarks repository.BookmarkRepository,
	tags repository.TagRepository,
	log *zap.Logger,
) *ItemServiceImpl {
	return &ItemServiceImpl{vaults: vaults, bookmarks: bookmarks, tags: tags, log: log}
}

// vaultFor resolves the caller's vault. Item operations never materialize
// the vault; writing items before the first vault access is a client error.
func (s *ItemServiceImpl) vaultFor(ctx context.Context, userID string) (*model.Vault, error) {
	v, err := s.vaults.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w, please initialize the vault first", err)
	}
	return v, nil
}

// itemSize sums decoded blob lengths and logs (without failing) when the
// client-declared size disagrees. The computed size is authoritative.
func (s *ItemServiceImpl) itemSize(itemID string, declared *int64, blobs ...[]byte) (int64, error) {
	var size int64
	for _, b := range blobs {
		size += int64(len(b))
	}
	if size > ItemMaxBytes {
		return 0, fmt.Errorf("item exceeds %d bytes: %w", ItemMaxBytes, errs.ErrPayloadTooLarge)
	}
	if declared != nil && *declared != size {
		s.log.Warn("item size mismatch",
			zap.String("item_id", itemID),
			zap.Int64("declared", *declared),
			zap.Int64("actual", size),
		)
	}
	return size, nil
}

func validateBookmarkData(d BookmarkData) error {
	if len(d.NonceContent) == 0 || len(d.CiphertextContent) == 0 || len(d.NonceWrap) == 0 || len(d.DEKWrapped) == 0 {
		return fmt.Errorf("empty blob field: %w", errs.ErrValidation)
	}
	return nil
}

func validateTagData(d TagData) error {
	if len(d.NonceContent) == 0 || len(d.CiphertextContent) == 0 {
		return fmt.Errorf("empty blob field: %w", errs.ErrValidation)
	}
	return nil
}

// --- Bookmarks ---

// CreateBookmark inserts a bookmark with version 1.
func (s *ItemServiceImpl) CreateBookmark(ctx context.Context, userID, itemID string, d BookmarkData, createdAt, updatedAt int64) (*model.Bookmark, error) {
	if itemID == "" {
		return nil, fmt.Errorf("empty item id: %w", errs.ErrValidation)
	}
	if err := validateBookmarkData(d); err != nil {
		return nil, err
	}
	v, err := s.vaultFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	size, err := s.itemSize(itemID, d.DeclaredSize, d.NonceContent, d.CiphertextContent, d.NonceWrap, d.DEKWrapped)
	if err != nil {
		return nil, err
	}

	b := &model.Bookmark{
		VaultID:           v.ID,
		ItemID:            itemID,
		NonceContent:      d.NonceContent,
		CiphertextContent: d.CiphertextContent,
		NonceWrap:         d.NonceWrap,
		DEKWrapped:        d.DEKWrapped,
		Version:           1,
		Size:              size,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	}
	b.ETag = pkgcrypto.ComputeETag(v.ID, b.Version, b.PersistedBytes()...)
	if err := s.bookmarks.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBookmark replaces the blobs of a live bookmark under the version and
// If-Match guards.
func (s *ItemServiceImpl) UpdateBookmark(ctx context.Context, userID, itemID string, version int64, d BookmarkData, updatedAt int64, ifMatch string) (*model.Bookmark, error) {
	if itemID == "" || version < 2 {
		return nil, fmt.Errorf("bad item id or version: %w", errs.ErrValidation)
	}
	if ifMatch == "" {
		return nil, fmt.Errorf("missing precondition: %w", errs.ErrConflict)
	}
	if err := validateBookmarkData(d); err != nil {
		return nil, err
	}
	v, err := s.vaultFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	size, err := s.itemSize(itemID, d.DeclaredSize, d.NonceContent, d.CiphertextContent, d.NonceWrap, d.DEKWrapped)
	if err != nil {
		return nil, err
	}

	b := &model.Bookmark{
		VaultID:           v.ID,
		ItemID:            itemID,
		NonceContent:      d.NonceContent,
		CiphertextContent: d.CiphertextContent,
		NonceWrap:         d.NonceWrap,
		DEKWrapped:        d.DEKWrapped,
		Version:           version,
		Size:              size,
		UpdatedAt:         updatedAt,
	}
	b.ETag = pkgcrypto.ComputeETag(v.ID, b.Version, b.PersistedBytes()...)
	if err := s.bookmarks.Update(ctx, b, ifMatch); err != nil {
		return nil, err
	}
	return s.bookmarks.Get(ctx, v.ID, itemID)
}

// DeleteBookmark tombstones a live bookmark. A repeated delete reports not
// found; tombstones are terminal for writes.
func (s *ItemServiceImpl) DeleteBookmark(ctx context.Context, userID, itemID string, version, deletedAt int64, ifMatch string) (*model.Bookmark, error) {
	if itemID == "" || version < 2 || deletedAt <= 0 {
		return nil, fmt.Errorf("bad delete input: %w", errs.ErrValidation)
	}
	if ifMatch == "" {
		return nil, fmt.Errorf("missing precondition: %w", errs.ErrConflict)
	}
	v, err := s.vaultFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.bookmarks.SoftDelete(ctx, v.ID, itemID, version, deletedAt, ifMatch)
}

// GetBookmark returns the full record, tombstoned or not.
func (s *ItemServiceImpl) GetBookmark(ctx context.Context, userID, itemID string) (*model.Bookmark, error) {
	v, err := s.vaultFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.bookmarks.Get(ctx, v.ID, itemID)
}

// ListBookmarks pages ascending by item id. The second return value is the
// id to resume after, empty when the last page was returned.
func (s *ItemServiceImpl) ListBookmarks(ctx context.Context, userID string, f model.ListFilter) ([]model.Bookmark, string, error) {
	v, err := s.vaultFor(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	limit := clampLimit(f.Limit, bookmarkListDefault, bookmarkListMax)
	f.Limit = limit + 1
	rows, err := s.bookmarks.List(ctx, v.ID, f)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		next = rows[limit-1].ItemID
	}
	return rows, next, nil
}

// --- Tags ---

// CreateTag inserts a tag with version 1.
func (s *ItemServiceImpl) CreateTag(ctx context.Context, userID, tagID string, d TagData, createdAt, updatedAt int64) (*model.Tag, error) {
	if tagID == "" {
		return nil, fmt.Errorf("empty tag id: %w", errs.ErrValidation)
	}
	if err := validateTagData(d); err != nil {
		return nil, err
	}
	v, err := s.vaultFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	size, err := s.itemSize(tagID, d.DeclaredSize, d.NonceContent, d.CiphertextContent)
	if err != nil {
		return nil, err
	}

	t := &model.Tag{
		VaultID:           v.ID,
		TagID:             tagID,
		NonceContent:      d.NonceContent,
		CiphertextContent: d.CiphertextContent,
		TagToken:          d.TagToken,
		Version:           1,
		Size:              size,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	}
	t.ETag = pkgcrypto.ComputeETag(v.ID, t.Version, t.PersistedBytes()...)
	if err := s.tags.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTag replaces the blobs and token of a live tag.
func (s *ItemServiceImpl) UpdateTag(ctx context.Context, userID, tagID string, version int64, d TagData, updatedAt int64, ifMatch string) (*model.Tag, error) {
	if tagID == "" || version < 2 {
		return nil, fmt.Errorf("bad tag id or version: %w", errs.ErrValidation)
	}
	if ifMatch == "" {
		return nil, fmt.Errorf("missing precondition: %w", errs.ErrConflict)
	}
	if err := validateTagData(d); err != nil {
		return nil, err
	}
	v, err := s.vaultFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	size, err := s.itemSize(tagID, d.DeclaredSize, d.NonceContent, d.CiphertextContent)
	if err != nil {
		return nil, err
	}

	t := &model.Tag{
		VaultID:           v.ID,
		TagID:             tagID,
		NonceContent:      d.NonceContent,
		CiphertextContent: d.CiphertextContent,
		TagToken:          d.TagToken,
		Version:           version,
		Size:              size,
		UpdatedAt:         updatedAt,
	}
	t.ETag = pkgcrypto.ComputeETag(v.ID, t.Version, t.PersistedBytes()...)
	if err := s.tags.Update(ctx, t, ifMatch); err != nil {
		return nil, err
	}
	return s.tags.Get(ctx, v.ID, tagID)
}

// DeleteTag tombstones a live tag.
func (s *ItemServiceImpl) DeleteTag(ctx context.Context, userID, tagID string, version, deletedAt int64, ifMatch string) (*model.Tag, error) {
	if tagID == "" || version < 2 || deletedAt <= 0 {
		return nil, fmt.Errorf("bad delete input: %w", errs.ErrValidation)
	}
	if ifMatch == "" {
		return nil, fmt.Errorf("missing precondition: %w", errs.ErrConflict)
	}
	v, err := s.vaultFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.tags.SoftDelete(ctx, v.ID, tagID, version, deletedAt, ifMatch)
}

// GetTag returns the full record, tombstoned or not.
func (s *ItemServiceImpl) GetTag(ctx context.Context, userID, tagID string) (*model.Tag, error) {
	v, err := s.vaultFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.tags.Get(ctx, v.ID, tagID)
}

// ListTags pages ascending by tag id.
func (s *ItemServiceImpl) ListTags(ctx context.Context, userID string, f model.ListFilter) ([]model.Tag, string, error) {
	v, err := s.vaultFor(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	limit := clampLimit(f.Limit, tagListDefault, tagListMax)
	f.Limit = limit + 1
	rows, err := s.tags.List(ctx, v.ID, f)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		next = rows[limit-1].TagID
	}
	return rows, next, nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
