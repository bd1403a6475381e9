package httpserver

import (
	"net/http"

	"github.com/aoculi/sanctuary/internal/model"
)

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type registerResponse struct {
	UserID string `json:"user_id"`
	KDF    kdfDTO `json:"kdf"`
}

// handleRegister creates a new user account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	u, err := s.auth.Register(r.Context(), req.Login, req.Password, clientAddr(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{UserID: u.ID, KDF: toKDFDTO(u.KDF)})
}

type loginResponse struct {
	UserID    string         `json:"user_id"`
	Token     string         `json:"token"`
	ExpiresAt int64          `json:"expires_at"`
	KDF       kdfDTO         `json:"kdf"`
	WrappedMK *wrappedKeyDTO `json:"wrapped_mk"`
}

// handleLogin authenticates and returns a token plus key-derivation bootstrap data.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.auth.Login(r.Context(), req.Login, req.Password, clientAddr(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		UserID:    res.User.ID,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		KDF:       toKDFDTO(res.User.KDF),
		WrappedMK: toWrappedKeyDTO(res.User.WrappedMK),
	})
}

type okResponse struct {
	OK bool `json:"ok"`
}

// handleLogout revokes the presented token's session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	if err := s.auth.Logout(r.Context(), id.JWTID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type sessionResponse struct {
	UserID    string `json:"user_id"`
	Valid     bool   `json:"valid"`
	ExpiresAt int64  `json:"expires_at"`
}

// handleSession introspects the presented token's session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	sess, err := s.auth.Introspect(r.Context(), id.JWTID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		UserID:    sess.UserID,
		Valid:     true,
		ExpiresAt: sess.ExpiresAt,
	})
}

type refreshResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// handleRefresh extends the session with a fresh token under the same jwt-id.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	token, expiresAt, err := s.auth.Refresh(r.Context(), id.UserID, id.JWTID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Token: token, ExpiresAt: expiresAt})
}

// handleSetWrappedKey stores the client's wrapped master key.
func (s *Server) handleSetWrappedKey(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	var req wrappedKeyDTO
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
	if err := s.auth.SetWrappedKey(r.Context(), id.UserID, model.WrappedKey{Nonce: nonce, Ciphertext: ciphertext}); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
