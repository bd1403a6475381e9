package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aoculi/sanctuary/internal/errs"
	"github.com/aoculi/sanctuary/internal/model"
	"github.com/aoculi/sanctuary/internal/service"
)

// parseListFilter reads the common pagination and filter query parameters.
func parseListFilter(r *http.Request) (model.ListFilter, error) {
	q := r.URL.Query()
	var f model.ListFilter
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("bad limit: %w", errs.ErrValidation)
		}
		f.Limit = n
	}
	if v := q.Get("cursor"); v != "" {
		id, err := decodeCursor(v)
		if err != nil {
			return f, err
		}
		f.Cursor = id
	}
	if v := q.Get("include_deleted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("bad include_deleted: %w", errs.ErrValidation)
		}
		f.IncludeDeleted = b
	}
	if v := q.Get("updated_after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return f, fmt.Errorf("bad updated_after: %w", errs.ErrValidation)
		}
		f.UpdatedAfter = &n
	}
	return f, nil
}

func nextCursorOf(nextID string) *string {
	if nextID == "" {
		return nil
	}
	c := encodeCursor(nextID)
	return &c
}

type deleteItemRequest struct {
	Version   int64 `json:"version"`
	DeletedAt int64 `json:"deleted_at"`
}

// --- Bookmarks ---

type bookmarkWriteRequest struct {
	ItemID            string `json:"item_id"`
	Version           int64  `json:"version"`
	NonceContent      string `json:"nonce_content"`
	CiphertextContent string `json:"ciphertext_content"`
	NonceWrap         string `json:"nonce_wrap"`
	DEKWrapped        string `json:"dek_wrapped"`
	Size              *int64 `json:"size"`
	CreatedAt         int64  `json:"created_at"`
	UpdatedAt         int64  `json:"updated_at"`
}

func (req *bookmarkWriteRequest) data() (service.BookmarkData, error) {
	var (
		d   service.BookmarkData
		err error
	)
	if d.NonceContent, err = decodeBase64("nonce_content", req.NonceContent); err != nil {
		return d, err
	}
	if d.CiphertextContent, err = decodeBase64("ciphertext_content", req.CiphertextContent); err != nil {
		return d, err
	}
	if d.NonceWrap, err = decodeBase64("nonce_wrap", req.NonceWrap); err != nil {
		return d, err
	}
	if d.DEKWrapped, err = decodeBase64("dek_wrapped", req.DEKWrapped); err != nil {
		return d, err
	}
	d.DeclaredSize = req.Size
	return d, nil
}

func (s *Server) handleCreateBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	var req bookmarkWriteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := req.data()
	if err != nil {
		s.writeError(w, err)
		return
	}
	b, err := s.items.CreateBookmark(r.Context(), id.UserID, req.ItemID, d, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("ETag", b.ETag)
	writeJSON(w, http.StatusCreated, toBookmarkDTO(b))
}

func (s *Server) handleUpdateBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	var req bookmarkWriteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := req.data()
	if err != nil {
		s.writeError(w, err)
		return
	}
	itemID := chi.URLParam(r, "itemID")
	b, err := s.items.UpdateBookmark(r.Context(), id.UserID, itemID, req.Version, d, req.UpdatedAt, r.Header.Get("If-Match"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("ETag", b.ETag)
	writeJSON(w, http.StatusOK, toBookmarkDTO(b))
}

func (s *Server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	var req deleteItemRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	itemID := chi.URLParam(r, "itemID")
	b, err := s.items.DeleteBookmark(r.Context(), id.UserID, itemID, req.Version, req.DeletedAt, r.Header.Get("If-Match"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("ETag", b.ETag)
	writeJSON(w, http.StatusOK, toBookmarkDTO(b))
}

func (s *Server) handleGetBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	b, err := s.items.GetBookmark(r.Context(), id.UserID, chi.URLParam(r, "itemID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("ETag", b.ETag)
	writeJSON(w, http.StatusOK, toBookmarkDTO(b))
}

type bookmarkListResponse struct {
	Bookmarks  []bookmarkDTO `json:"bookmarks"`
	NextCursor *string       `json:"next_cursor"`
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	f, err := parseListFilter(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rows, nextID, err := s.items.ListBookmarks(r.Context(), id.UserID, f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := bookmarkListResponse{Bookmarks: make([]bookmarkDTO, 0, len(rows)), NextCursor: nextCursorOf(nextID)}
	for i := range rows {
		out.Bookmarks = append(out.Bookmarks, toBookmarkDTO(&rows[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Tags ---

type tagWriteRequest struct {
	TagID             string  `json:"tag_id"`
	Version           int64   `json:"version"`
	NonceContent      string  `json:"nonce_content"`
	CiphertextContent string  `json:"ciphertext_content"`
	TagToken          *string `json:"tag_token"`
	Size              *int64  `json:"size"`
	CreatedAt         int64   `json:"created_at"`
	UpdatedAt         int64   `json:"updated_at"`
}

func (req *tagWriteRequest) data() (service.TagData, error) {
	var (
		d   service.TagData
		err error
	)
	if d.NonceContent, err = decodeBase64("nonce_content", req.NonceContent); err != nil {
		return d, err
	}
	if d.CiphertextContent, err = decodeBase64("ciphertext_content", req.CiphertextContent); err != nil {
		return d, err
	}
	d.TagToken = req.TagToken
	d.DeclaredSize = req.Size
	return d, nil
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	var req tagWriteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := req.data()
	if err != nil {
		s.writeError(w, err)
		return
	}
	t, err := s.items.CreateTag(r.Context(), id.UserID, req.TagID, d, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("ETag", t.ETag)
	writeJSON(w, http.StatusCreated, toTagDTO(t))
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	var req tagWriteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := req.data()
	if err != nil {
		s.writeError(w, err)
		return
	}
	tagID := chi.URLParam(r, "tagID")
	t, err := s.items.UpdateTag(r.Context(), id.UserID, tagID, req.Version, d, req.UpdatedAt, r.Header.Get("If-Match"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("ETag", t.ETag)
	writeJSON(w, http.StatusOK, toTagDTO(t))
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	var req deleteItemRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	tagID := chi.URLParam(r, "tagID")
	t, err := s.items.DeleteTag(r.Context(), id.UserID, tagID, req.Version, req.DeletedAt, r.Header.Get("If-Match"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("ETag", t.ETag)
	writeJSON(w, http.StatusOK, toTagDTO(t))
}

func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	t, err := s.items.GetTag(r.Context(), id.UserID, chi.URLParam(r, "tagID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("ETag", t.ETag)
	writeJSON(w, http.StatusOK, toTagDTO(t))
}

type tagListResponse struct {
	Tags       []tagDTO `json:"tags"`
	NextCursor *string  `json:"next_cursor"`
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	f, err := parseListFilter(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// An explicit empty token matches tags with no blind index; an absent
	// parameter applies no token filter at all.
	if r.URL.Query().Has("token") {
		v := r.URL.Query().Get("token")
		f.ByToken = &v
	}
	rows, nextID, err := s.items.ListTags(r.Context(), id.UserID, f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := tagListResponse{Tags: make([]tagDTO, 0, len(rows)), NextCursor: nextCursorOf(nextID)}
	for i := range rows {
		out.Tags = append(out.Tags, toTagDTO(&rows[i]))
	}
	writeJSON(w, http.StatusOK, out)
}
