package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/aoculi/sanctuary/internal/model"
	"github.com/aoculi/sanctuary/internal/service"
)

// Scripted fakes implementing the service interfaces. Each records the
// inputs the transport handed down so tests can assert the decoding.

type fakeAuth struct {
	registerUser *model.User
	registerErr  error
	loginRes     *service.LoginResult
	loginErr     error
	authID       service.Identity
	authErr      error
	logoutErr    error
	sess         *model.Session
	sessErr      error
	refreshTok   string
	refreshExp   int64
	refreshErr   error
	wkErr        error

	gotLogin string
	gotAddr  string
	gotWK    *model.WrappedKey
}

var _ service.AuthService = (*fakeAuth)(nil)

func (f *fakeAuth) Register(_ context.Context, login, _, addr string) (*model.User, error) {
	f.gotLogin, f.gotAddr = login, addr
	return f.registerUser, f.registerErr
}

func (f *fakeAuth) Login(_ context.Context, login, _, addr string) (*service.LoginResult, error) {
	f.gotLogin, f.gotAddr = login, addr
	return f.loginRes, f.loginErr
}

func (f *fakeAuth) Logout(context.Context, string) error { return f.logoutErr }

func (f *fakeAuth) Introspect(context.Context, string) (*model.Session, error) {
	return f.sess, f.sessErr
}

func (f *fakeAuth) Refresh(context.Context, string, string) (string, int64, error) {
	return f.refreshTok, f.refreshExp, f.refreshErr
}

func (f *fakeAuth) SetWrappedKey(_ context.Context, _ string, wk model.WrappedKey) error {
	f.gotWK = &wk
	return f.wkErr
}

func (f *fakeAuth) Authenticate(context.Context, string) (service.Identity, error) {
	return f.authID, f.authErr
}

type fakeVaultSvc struct {
	vault       *model.Vault
	hasManifest bool
	vaultErr    error
	manifest    *model.Manifest
	manifestErr error
	putManifest *model.Manifest
	putCreated  bool
	putErr      error

	gotPut *service.PutManifest
}

var _ service.VaultService = (*fakeVaultSvc)(nil)

func (f *fakeVaultSvc) GetVault(context.Context, string) (*model.Vault, bool, error) {
	return f.vault, f.hasManifest, f.vaultErr
}

func (f *fakeVaultSvc) GetManifest(context.Context, string) (*model.Manifest, error) {
	return f.manifest, f.manifestErr
}

func (f *fakeVaultSvc) UpsertManifest(_ context.Context, _ string, in service.PutManifest) (*model.Manifest, bool, error) {
	f.gotPut = &in
	return f.putManifest, f.putCreated, f.putErr
}

type fakeItemSvc struct {
	bookmark *model.Bookmark
	tag      *model.Tag
	err      error

	bookmarks []model.Bookmark
	tags      []model.Tag
	nextID    string

	gotFilter *model.ListFilter
}

var _ service.ItemService = (*fakeItemSvc)(nil)

func (f *fakeItemSvc) CreateBookmark(context.Context, string, string, service.BookmarkData, int64, int64) (*model.Bookmark, error) {
	return f.bookmark, f.err
}

func (f *fakeItemSvc) UpdateBookmark(context.Context, string, string, int64, service.BookmarkData, int64, string) (*model.Bookmark, error) {
	return f.bookmark, f.err
}

func (f *fakeItemSvc) DeleteBookmark(context.Context, string, string, int64, int64, string) (*model.Bookmark, error) {
	return f.bookmark, f.err
}

func (f *fakeItemSvc) GetBookmark(context.Context, string, string) (*model.Bookmark, error) {
	return f.bookmark, f.err
}

func (f *fakeItemSvc) ListBookmarks(_ context.Context, _ string, flt model.ListFilter) ([]model.Bookmark, string, error) {
	f.gotFilter = &flt
	return f.bookmarks, f.nextID, f.err
}

func (f *fakeItemSvc) CreateTag(context.Context, string, string, service.TagData, int64, int64) (*model.Tag, error) {
	return f.tag, f.err
}

func (f *fakeItemSvc) UpdateTag(context.Context, string, string, int64, service.TagData, int64, string) (*model.Tag, error) {
	return f.tag, f.err
}

func (f *fakeItemSvc) DeleteTag(context.Context, string, string, int64, int64, string) (*model.Tag, error) {
	return f.tag, f.err
}

func (f *fakeItemSvc) GetTag(context.Context, string, string) (*model.Tag, error) {
	return f.tag, f.err
}

func (f *fakeItemSvc) ListTags(_ context.Context, _ string, flt model.ListFilter) ([]model.Tag, string, error) {
	f.gotFilter = &flt
	return f.tags, f.nextID, f.err
}

type fakeLinkSvc struct {
	created   bool
	linkErr   error
	unlinkErr error
	tagIDs    []string
	tagsErr   error
}

var _ service.LinkService = (*fakeLinkSvc)(nil)

func (f *fakeLinkSvc) Link(context.Context, string, string, string, int64) (bool, error) {
	return f.created, f.linkErr
}

func (f *fakeLinkSvc) Unlink(context.Context, string, string, string) error { return f.unlinkErr }

func (f *fakeLinkSvc) TagsOf(context.Context, string, string) ([]string, error) {
	return f.tagIDs, f.tagsErr
}

type testEnv struct {
	auth  *fakeAuth
	vault *fakeVaultSvc
	items *fakeItemSvc
	links *fakeLinkSvc
	h     http.Handler
}

// newTestServer wires fakes behind a real router. The fake auth admits
// callers by default; tests flip authErr to exercise the middleware.
func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		auth:  &fakeAuth{authID: service.Identity{UserID: "u_1", JWTID: "jti-1"}},
		vault: &fakeVaultSvc{},
		items: &fakeItemSvc{},
		links: &fakeLinkSvc{},
	}
	env.h = New(env.auth, env.vault, env.items, env.links, zap.NewNop(), "*").Router()
	return env
}

// doJSON performs a request with an optional JSON body and bearer header.
func (e *testEnv) doJSON(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer test-token")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, req)
	return w
}

// newBareRequest builds a request without a bearer header.
func newBareRequest(_ *testEnv, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	return httptest.NewRequest(method, path, nil), httptest.NewRecorder()
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
