package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aoculi/sanctuary/internal/errs"
	"github.com/aoculi/sanctuary/internal/model"
)

// decodeBase64 decodes canonical RFC 4648 standard base64. Non-canonical
// forms (wrong padding, url-safe alphabet, embedded whitespace) are rejected
// by requiring the re-encode of the decode to equal the input exactly.
func decodeBase64(field, s string) ([]byte, error) {
	b, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil || base64.StdEncoding.EncodeToString(b) != s {
		return nil, fmt.Errorf("%s is not canonical base64: %w", field, errs.ErrValidation)
	}
	return b, nil
}

func encodeBase64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// Pagination cursors are the base64url (no padding) encoding of the last
// returned id.
func encodeCursor(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func decodeCursor(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("bad cursor: %w", errs.ErrValidation)
	}
	return string(b), nil
}

type errorResponse struct {
	Error      string `json:"error"`
	RetryAfter *int64 `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON parses a request body, mapping malformed JSON to a validation error.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("malformed json body: %w", errs.ErrValidation)
	}
	return nil
}

// ifMatchHeader returns the If-Match value, nil when the header is absent.
func ifMatchHeader(r *http.Request) *string {
	if v := r.Header.Get("If-Match"); v != "" {
		return &v
	}
	return nil
}

// --- DTOs ---

type kdfDTO struct {
	Algorithm   string `json:"algorithm"`
	Salt        string `json:"salt"`
	MemoryCost  int    `json:"memory_cost"`
	TimeCost    int    `json:"time_cost"`
	Parallelism int    `json:"parallelism"`
	HKDFSalt    string `json:"hkdf_salt"`
}

func toKDFDTO(k model.KDFParams) kdfDTO {
	return kdfDTO{
		Algorithm:   k.Algorithm,
		Salt:        encodeBase64(k.Salt),
		MemoryCost:  k.MemoryCost,
		TimeCost:    k.TimeCost,
		Parallelism: k.Parallelism,
		HKDFSalt:    encodeBase64(k.HKDFSalt),
	}
}

type wrappedKeyDTO struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func toWrappedKeyDTO(wk *model.WrappedKey) *wrappedKeyDTO {
	if wk == nil {
		return nil
	}
	return &wrappedKeyDTO{
		Nonce:      encodeBase64(wk.Nonce),
		Ciphertext: encodeBase64(wk.Ciphertext),
	}
}

type bookmarkDTO struct {
	ItemID            string `json:"item_id"`
	NonceContent      string `json:"nonce_content"`
	CiphertextContent string `json:"ciphertext_content"`
	NonceWrap         string `json:"nonce_wrap"`
	DEKWrapped        string `json:"dek_wrapped"`
	ETag              string `json:"etag"`
	Version           int64  `json:"version"`
	Size              int64  `json:"size"`
	CreatedAt         int64  `json:"created_at"`
	UpdatedAt         int64  `json:"updated_at"`
	DeletedAt         *int64 `json:"deleted_at"`
}

func toBookmarkDTO(b *model.Bookmark) bookmarkDTO {
	return bookmarkDTO{
		ItemID:            b.ItemID,
		NonceContent:      encodeBase64(b.NonceContent),
		CiphertextContent: encodeBase64(b.CiphertextContent),
		NonceWrap:         encodeBase64(b.NonceWrap),
		DEKWrapped:        encodeBase64(b.DEKWrapped),
		ETag:              b.ETag,
		Version:           b.Version,
		Size:              b.Size,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
		DeletedAt:         b.DeletedAt,
	}
}

type tagDTO struct {
	TagID             string  `json:"tag_id"`
	NonceContent      string  `json:"nonce_content"`
	CiphertextContent string  `json:"ciphertext_content"`
	TagToken          *string `json:"tag_token"`
	ETag              string  `json:"etag"`
	Version           int64   `json:"version"`
	Size              int64   `json:"size"`
	CreatedAt         int64   `json:"created_at"`
	UpdatedAt         int64   `json:"updated_at"`
	DeletedAt         *int64  `json:"deleted_at"`
}

func toTagDTO(t *model.Tag) tagDTO {
	return tagDTO{
		TagID:             t.TagID,
		NonceContent:      encodeBase64(t.NonceContent),
		CiphertextContent: encodeBase64(t.CiphertextContent),
		TagToken:          t.TagToken,
		ETag:              t.ETag,
		Version:           t.Version,
		Size:              t.Size,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
		DeletedAt:         t.DeletedAt,
	}
}
