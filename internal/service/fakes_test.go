package service

import (
	"context"
	"sort"
	"strings"

	pkgcrypto "github.com/aoculi/sanctuary/internal/crypto"
	"github.com/aoculi/sanctuary/internal/errs"
	"github.com/aoculi/sanctuary/internal/model"
	"github.com/aoculi/sanctuary/internal/repository"
)

// In-memory repositories implementing the storage contracts, including the
// version/ETag checks the Postgres implementations perform in transactions.

type fakeUsers struct {
	byLogin   map[string]*model.User
	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers() *fakeUsers { return &fakeUsers{byLogin: map[string]*model.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byLogin[u.Login]; exists {
		return errs.ErrConflict
	}
	cpy := *u
	f.byLogin[u.Login] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	for _, u := range f.byLogin {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByLogin(_ context.Context, login string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byLogin[login]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) SetWrappedKey(_ context.Context, id string, wk model.WrappedKey, updatedAt int64) error {
	for _, u := range f.byLogin {
		if u.ID == id {
			u.WrappedMK = &model.WrappedKey{Nonce: wk.Nonce, Ciphertext: wk.Ciphertext}
			u.UpdatedAt = updatedAt
			return nil
		}
	}
	return errs.ErrNotFound
}

type fakeSessions struct {
	byJWTID map[string]*model.Session
}

var _ repository.SessionRepository = (*fakeSessions)(nil)

func newFakeSessions() *fakeSessions { return &fakeSessions{byJWTID: map[string]*model.Session{}} }

func (f *fakeSessions) Create(_ context.Context, s *model.Session) error {
	if _, exists := f.byJWTID[s.JWTID]; exists {
		return errs.ErrConflict
	}
	cpy := *s
	f.byJWTID[s.JWTID] = &cpy
	return nil
}

func (f *fakeSessions) GetByJWTID(_ context.Context, jwtID string) (*model.Session, error) {
	s, ok := f.byJWTID[jwtID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeSessions) RevokeByJWTID(_ context.Context, jwtID string, at int64) error {
	if s, ok := f.byJWTID[jwtID]; ok && s.RevokedAt == nil {
		s.RevokedAt = &at
	}
	return nil
}

func (f *fakeSessions) UpdateExpiration(_ context.Context, jwtID string, expiresAt int64) error {
	s, ok := f.byJWTID[jwtID]
	if !ok {
		return errs.ErrNotFound
	}
	s.ExpiresAt = expiresAt
	return nil
}

func (f *fakeSessions) DeleteExpired(_ context.Context, before int64) error {
	for k, s := range f.byJWTID {
		if s.ExpiresAt < before {
			delete(f.byJWTID, k)
		}
	}
	return nil
}

type fakeVaults struct {
	byUserID  map[string]*model.Vault
	manifests map[string]*model.Manifest
}

var _ repository.VaultRepository = (*fakeVaults)(nil)

func newFakeVaults() *fakeVaults {
	return &fakeVaults{byUserID: map[string]*model.Vault{}, manifests: map[string]*model.Manifest{}}
}

func (f *fakeVaults) GetByUserID(_ context.Context, userID string) (*model.Vault, error) {
	v, ok := f.byUserID[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *v
	return &c, nil
}

func (f *fakeVaults) Ensure(ctx context.Context, v *model.Vault) (*model.Vault, error) {
	if _, ok := f.byUserID[v.UserID]; !ok {
		cpy := *v
		f.byUserID[v.UserID] = &cpy
	}
	return f.GetByUserID(ctx, v.UserID)
}

func (f *fakeVaults) GetManifest(_ context.Context, vaultID string) (*model.Manifest, error) {
	m, ok := f.manifests[vaultID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *m
	return &c, nil
}

func (f *fakeVaults) HasManifest(_ context.Context, vaultID string) (bool, error) {
	_, ok := f.manifests[vaultID]
	return ok, nil
}

func (f *fakeVaults) UpsertManifest(_ context.Context, m *model.Manifest, ifMatch *string) (bool, error) {
	var vault *model.Vault
	for _, v := range f.byUserID {
		if v.ID == m.VaultID {
			vault = v
		}
	}
	if vault == nil {
		return false, errs.ErrNotFound
	}
	if m.Version != vault.Version+1 {
		return false, errs.ErrConflict
	}
	if vault.Version > 0 {
		if ifMatch == nil || *ifMatch != f.manifests[m.VaultID].ETag {
			return false, errs.ErrConflict
		}
	}
	created := vault.Version == 0
	cpy := *m
	f.manifests[m.VaultID] = &cpy
	vault.Version = m.Version
	vault.BytesTotal = m.Size
	vault.UpdatedAt = m.UpdatedAt
	return created, nil
}

func itemKey(vaultID, id string) string { return vaultID + "/" + id }

type fakeBookmarks struct {
	rows map[string]*model.Bookmark
}

var _ repository.BookmarkRepository = (*fakeBookmarks)(nil)

func newFakeBookmarks() *fakeBookmarks { return &fakeBookmarks{rows: map[string]*model.Bookmark{}} }

func (f *fakeBookmarks) Create(_ context.Context, b *model.Bookmark) error {
	k := itemKey(b.VaultID, b.ItemID)
	if _, exists := f.rows[k]; exists {
		return errs.ErrConflict
	}
	cpy := *b
	f.rows[k] = &cpy
	return nil
}

func (f *fakeBookmarks) Update(_ context.Context, b *model.Bookmark, ifMatch string) error {
	cur, ok := f.rows[itemKey(b.VaultID, b.ItemID)]
	if !ok || cur.DeletedAt != nil {
		return errs.ErrNotFound
	}
	if b.Version != cur.Version+1 || ifMatch != cur.ETag {
		return errs.ErrConflict
	}
	cpy := *b
	cpy.CreatedAt = cur.CreatedAt
	f.rows[itemKey(b.VaultID, b.ItemID)] = &cpy
	return nil
}

func (f *fakeBookmarks) SoftDelete(_ context.Context, vaultID, itemID string, version, deletedAt int64, ifMatch string) (*model.Bookmark, error) {
	cur, ok := f.rows[itemKey(vaultID, itemID)]
	if !ok || cur.DeletedAt != nil {
		return nil, errs.ErrNotFound
	}
	if version != cur.Version+1 || ifMatch != cur.ETag {
		return nil, errs.ErrConflict
	}
	cur.ETag = pkgcrypto.ComputeETag(vaultID, version, cur.PersistedBytes()...)
	cur.Version = version
	cur.DeletedAt = &deletedAt
	cur.UpdatedAt = deletedAt
	c := *cur
	return &c, nil
}

func (f *fakeBookmarks) Get(_ context.Context, vaultID, itemID string) (*model.Bookmark, error) {
	b, ok := f.rows[itemKey(vaultID, itemID)]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (f *fakeBookmarks) List(_ context.Context, vaultID string, flt model.ListFilter) ([]model.Bookmark, error) {
	var out []model.Bookmark
	for _, b := range f.rows {
		if b.VaultID != vaultID {
			continue
		}
		if !flt.IncludeDeleted && b.DeletedAt != nil {
			continue
		}
		if flt.Cursor != "" && b.ItemID <= flt.Cursor {
			continue
		}
		if flt.UpdatedAfter != nil && b.UpdatedAt <= *flt.UpdatedAfter {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	if flt.Limit > 0 && len(out) > flt.Limit {
		out = out[:flt.Limit]
	}
	return out, nil
}

type fakeTags struct {
	rows map[string]*model.Tag
}

var _ repository.TagRepository = (*fakeTags)(nil)

func newFakeTags() *fakeTags { return &fakeTags{rows: map[string]*model.Tag{}} }

func (f *fakeTags) Create(_ context.Context, t *model.Tag) error {
	k := itemKey(t.VaultID, t.TagID)
	if _, exists := f.rows[k]; exists {
		return errs.ErrConflict
	}
	cpy := *t
	f.rows[k] = &cpy
	return nil
}

func (f *fakeTags) Update(_ context.Context, t *model.Tag, ifMatch string) error {
	cur, ok := f.rows[itemKey(t.VaultID, t.TagID)]
	if !ok || cur.DeletedAt != nil {
		return errs.ErrNotFound
	}
	if t.Version != cur.Version+1 || ifMatch != cur.ETag {
		return errs.ErrConflict
	}
	cpy := *t
	cpy.CreatedAt = cur.CreatedAt
	f.rows[itemKey(t.VaultID, t.TagID)] = &cpy
	return nil
}

func (f *fakeTags) SoftDelete(_ context.Context, vaultID, tagID string, version, deletedAt int64, ifMatch string) (*model.Tag, error) {
	cur, ok := f.rows[itemKey(vaultID, tagID)]
	if !ok || cur.DeletedAt != nil {
		return nil, errs.ErrNotFound
	}
	if version != cur.Version+1 || ifMatch != cur.ETag {
		return nil, errs.ErrConflict
	}
	cur.ETag = pkgcrypto.ComputeETag(vaultID, version, cur.PersistedBytes()...)
	cur.Version = version
	cur.DeletedAt = &deletedAt
	cur.UpdatedAt = deletedAt
	c := *cur
	return &c, nil
}

func (f *fakeTags) Get(_ context.Context, vaultID, tagID string) (*model.Tag, error) {
	t, ok := f.rows[itemKey(vaultID, tagID)]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (f *fakeTags) List(_ context.Context, vaultID string, flt model.ListFilter) ([]model.Tag, error) {
	var out []model.Tag
	for _, t := range f.rows {
		if t.VaultID != vaultID {
			continue
		}
		if !flt.IncludeDeleted && t.DeletedAt != nil {
			continue
		}
		if flt.Cursor != "" && t.TagID <= flt.Cursor {
			continue
		}
		if flt.UpdatedAfter != nil && t.UpdatedAt <= *flt.UpdatedAfter {
			continue
		}
		if flt.ByToken != nil {
			if *flt.ByToken == "" {
				if t.TagToken != nil {
					continue
				}
			} else if t.TagToken == nil || *t.TagToken != *flt.ByToken {
				continue
			}
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TagID < out[j].TagID })
	if flt.Limit > 0 && len(out) > flt.Limit {
		out = out[:flt.Limit]
	}
	return out, nil
}

type fakeLinks struct {
	rows map[string]*model.BookmarkTag
	tags *fakeTags
}

var _ repository.LinkRepository = (*fakeLinks)(nil)

func newFakeLinks(tags *fakeTags) *fakeLinks {
	return &fakeLinks{rows: map[string]*model.BookmarkTag{}, tags: tags}
}

func linkKey(vaultID, itemID, tagID string) string {
	return strings.Join([]string{vaultID, itemID, tagID}, "/")
}

func (f *fakeLinks) Link(_ context.Context, l *model.BookmarkTag) (bool, error) {
	k := linkKey(l.VaultID, l.ItemID, l.TagID)
	if _, exists := f.rows[k]; exists {
		return false, nil
	}
	cpy := *l
	f.rows[k] = &cpy
	return true, nil
}

func (f *fakeLinks) Unlink(_ context.Context, vaultID, itemID, tagID string) (bool, error) {
	k := linkKey(vaultID, itemID, tagID)
	if _, exists := f.rows[k]; !exists {
		return false, nil
	}
	delete(f.rows, k)
	return true, nil
}

func (f *fakeLinks) TagsOf(_ context.Context, vaultID, itemID string) ([]string, error) {
	out := []string{}
	for _, l := range f.rows {
		if l.VaultID != vaultID || l.ItemID != itemID {
			continue
		}
		if t, ok := f.tags.rows[itemKey(vaultID, l.TagID)]; ok && t.DeletedAt == nil {
			out = append(out, l.TagID)
		}
	}
	sort.Strings(out)
	return out, nil
}
