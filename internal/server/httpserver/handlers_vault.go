package httpserver

import (
	"net/http"
	"strconv"

	"github.com/aoculi/sanctuary/internal/service"
)

type vaultResponse struct {
	VaultID     string `json:"vault_id"`
	Version     int64  `json:"version"`
	BytesTotal  int64  `json:"bytes_total"`
	HasManifest bool   `json:"has_manifest"`
	UpdatedAt   int64  `json:"updated_at"`
}

// handleGetVault lazily materializes and returns the caller's vault.
func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	v, hasManifest, err := s.vault.GetVault(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vaultResponse{
		VaultID:     v.ID,
		Version:     v.Version,
		BytesTotal:  v.BytesTotal,
		HasManifest: hasManifest,
		UpdatedAt:   v.UpdatedAt,
	})
}

type manifestResponse struct {
	VaultID    string `json:"vault_id"`
	Version    int64  `json:"version"`
	ETag       string `json:"etag"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	Size       int64  `json:"size"`
	UpdatedAt  int64  `json:"updated_at"`
}

// handleGetManifest returns the manifest blob.
func (s *Server) handleGetManifest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	m, err := s.vault.GetManifest(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("ETag", m.ETag)
	w.Header().Set("X-Vault-Version", strconv.FormatInt(m.Version, 10))
	writeJSON(w, http.StatusOK, manifestResponse{
		VaultID:    m.VaultID,
		Version:    m.Version,
		ETag:       m.ETag,
		Nonce:      encodeBase64(m.Nonce),
		Ciphertext: encodeBase64(m.Ciphertext),
		Size:       m.Size,
		UpdatedAt:  m.UpdatedAt,
	})
}

// handleHeadManifest returns the manifest's ETag and version headers without
// the blob; this is how efficient clients poll for changes.
func (s *Server) handleHeadManifest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	m, err := s.vault.GetManifest(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("ETag", m.ETag)
	w.Header().Set("X-Vault-Version", strconv.FormatInt(m.Version, 10))
	w.WriteHeader(http.StatusOK)
}

type putManifestRequest struct {
	Version    int64  `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	Size       *int64 `json:"size"`
}

type putManifestResponse struct {
	VaultID   string `json:"vault_id"`
	Version   int64  `json:"version"`
	ETag      string `json:"etag"`
	UpdatedAt int64  `json:"updated_at"`
}

// handlePutManifest commits a CAS-guarded manifest write. The first write
// (version 0 -> 1) answers 201, replacements 200.
func (s *Server) handlePutManifest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	var req putManifestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	nonce, err := decodeBase64("nonce", req.Nonce)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ciphertext, err := decodeBase64("ciphertext", req.Ciphertext)
	if err != nil {
		s.writeError(w, err)
		return
	}
	m, created, err := s.vault.UpsertManifest(r.Context(), id.UserID, service.PutManifest{
		Version:      req.Version,
		Nonce:        nonce,
		Ciphertext:   ciphertext,
		DeclaredSize: req.Size,
		IfMatch:      ifMatchHeader(r),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	w.Header().Set("ETag", m.ETag)
	writeJSON(w, status, putManifestResponse{
		VaultID:   m.VaultID,
		Version:   m.Version,
		ETag:      m.ETag,
		UpdatedAt: m.UpdatedAt,
	})
}
