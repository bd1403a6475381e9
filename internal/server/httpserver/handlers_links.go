package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type linkRequest struct {
	ItemID    string `json:"item_id"`
	TagID     string `json:"tag_id"`
	CreatedAt int64  `json:"created_at"`
}

type linkResponse struct {
	Linked bool `json:"linked"`
}

// handleLink associates a bookmark with a tag. The first insert answers 201;
// an idempotent repeat answers 200 with the same body.
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	var req linkRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	created, err := s.links.Link(r.Context(), id.UserID, req.ItemID, req.TagID, req.CreatedAt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, linkResponse{Linked: true})
}

// handleUnlink removes the association; unlinking an absent row still succeeds.
func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	var req linkRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.links.Unlink(r.Context(), id.UserID, req.ItemID, req.TagID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, linkResponse{Linked: false})
}

type tagsOfResponse struct {
	TagIDs []string `json:"tag_ids"`
}

// handleTagsOf lists ids of live tags linked to the bookmark.
func (s *Server) handleTagsOf(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	tagIDs, err := s.links.TagsOf(r.Context(), id.UserID, chi.URLParam(r, "itemID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tagsOfResponse{TagIDs: tagIDs})
}
