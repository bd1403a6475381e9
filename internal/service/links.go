package service

import (
	"context"
	"fmt"

	"github.com/aoculi/sanctuary/internal/errs"
	"github.com/aoculi/sanctuary/internal/model"
	"github.com/aoculi/sanctuary/internal/repository"
)

// LinkService binds bookmarks to tags under vault-scoped referential
// integrity. Link and unlink are idempotent; both endpoints must exist and
// be live in the caller's vault.
type LinkService interface {
	// Link associates a bookmark with a tag. Reports whether a new row was
	// created (false on an idempotent repeat).
	Link(ctx context.Context, userID, itemID, tagID string, createdAt int64) (created bool, err error)
	// Unlink removes the association; removing an absent link succeeds.
	Unlink(ctx context.Context, userID, itemID, tagID string) error
	// TagsOf returns ids of live tags linked to a live bookmark.
	TagsOf(ctx context.Context, userID, itemID string) ([]string, error)
}

type LinkServiceImpl struct {
	vaults    repository.VaultRepository
	bookmarks repository.BookmarkRepository
	tags      repository.TagRepository
	links     repository.LinkRepository
}

// NewLinkService constructs LinkService.
func NewLinkService(
	vaults repository.VaultRepository,
	bookmarks repository.BookmarkRepository,
	tags repository.TagRepository,
	links repository.LinkRepository,
) *LinkServiceImpl {
	return &LinkServiceImpl{vaults: vaults, bookmarks: bookmarks, tags: tags, links: links}
}

// checkEndpoints resolves the vault and verifies both endpoints are live,
// naming the offending entity on failure. Link and unlink deliberately share
// these checks, so unlinking from a deleted endpoint is also not found.
func (s *LinkServiceImpl) checkEndpoints(ctx context.Context, userID, itemID, tagID string) (*model.Vault, error) {
	if itemID == "" || tagID == "" {
		return nil, fmt.Errorf("empty item or tag id: %w", errs.ErrValidation)
	}
	v, err := s.vaults.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("vault not initialized: %w", err)
	}
	b, err := s.bookmarks.Get(ctx, v.ID, itemID)
	if err != nil {
		return nil, fmt.Errorf("bookmark %s: %w", itemID, err)
	}
	if b.DeletedAt != nil {
		return nil, fmt.Errorf("bookmark %s: %w", itemID, errs.ErrNotFound)
	}
	t, err := s.tags.Get(ctx, v.ID, tagID)
	if err != nil {
		return nil, fmt.Errorf("tag %s: %w", tagID, err)
	}
	if t.DeletedAt != nil {
		return nil, fmt.Errorf("tag %s: %w", tagID, errs.ErrNotFound)
	}
	return v, nil
}

// Link associates the bookmark with the tag.
func (s *LinkServiceImpl) Link(ctx context.Context, userID, itemID, tagID string, createdAt int64) (bool, error) {
	v, err := s.checkEndpoints(ctx, userID, itemID, tagID)
	if err != nil {
		return false, err
	}
	return s.links.Link(ctx, &model.BookmarkTag{
		VaultID:   v.ID,
		ItemID:    itemID,
		TagID:     tagID,
		CreatedAt: createdAt,
	})
}

// Unlink removes the association if present.
func (s *LinkServiceImpl) Unlink(ctx context.Context, userID, itemID, tagID string) error {
	v, err := s.checkEndpoints(ctx, userID, itemID, tagID)
	if err != nil {
		return err
	}
	_, err = s.links.Unlink(ctx, v.ID, itemID, tagID)
	return err
}

// TagsOf lists live tags linked to a live bookmark.
func (s *LinkServiceImpl) TagsOf(ctx context.Context, userID, itemID string) ([]string, error) {
	if itemID == "" {
		return nil, fmt.Errorf("empty item id: %w", errs.ErrValidation)
	}
	v, err := s.vaults.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("vault not initialized: %w", err)
	}
	b, err := s.bookmarks.Get(ctx, v.ID, itemID)
	if err != nil {
		return nil, fmt.Errorf("bookmark %s: %w", itemID, err)
	}
	if b.DeletedAt != nil {
		return nil, fmt.Errorf("bookmark %s: %w", itemID, errs.ErrNotFound)
	}
	return s.links.TagsOf(ctx, v.ID, itemID)
}
