// Package model defines domain entities used by services and repositories.
package model

// All timestamps are milliseconds since the Unix epoch. Opaque byte fields
// hold raw ciphertext/nonces exactly as the client produced them; the server
// never interprets their contents.

// KDFParams is the client-side key derivation configuration committed at
// registration. It is returned verbatim on every login and never regenerated,
// because the client's derived key is defined by these values.
type KDFParams struct {
	Algorithm   string // algorithm tag, e.g. "argon2id"
	Salt        []byte // 32-byte KDF salt
	MemoryCost  int    // KiB
	TimeCost    int
	Parallelism int
	HKDFSalt    []byte // 16-byte HKDF salt
}

// WrappedKey is the user's master key encrypted under a client-held key.
type WrappedKey struct {
	Nonce      []byte // 24 bytes
	Ciphertext []byte
}

// User is the identity and credential holder.
type User struct {
	ID        string // opaque, prefix "u_"
	Login     string // unique, case-sensitive
	PwdHash   string // PHC-encoded Argon2id verifier
	KDF       KDFParams
	WrappedMK *WrappedKey // nil until the client uploads one
	CreatedAt int64
	UpdatedAt int64
}

// Session is an issued bearer token record. A token bearing a given JWTID is
// valid iff the session exists, RevokedAt is nil, and ExpiresAt > now.
type Session struct {
	ID        string // opaque, prefix "s_"
	UserID    string
	JWTID     string // unique, embedded in the token's jti claim
	ExpiresAt int64
	RevokedAt *int64
	CreatedAt int64
}

// Vault is the per-user root of encrypted content. Exactly one per user,
// lazily materialized. Version mirrors the manifest version; 0 means no
// manifest has been written yet.
type Vault struct {
	ID         string // opaque, prefix "vlt_"
	UserID     string
	Version    int64
	BytesTotal int64
	UpdatedAt  int64
}

// Manifest is the zero-or-one encrypted blob per vault.
type Manifest struct {
	VaultID    string
	Version    int64
	ETag       string // base64url SHA-256, see crypto.ComputeETag
	Nonce      []byte
	Ciphertext []byte
	Size       int64
	UpdatedAt  int64
}

// Bookmark is a per-item encrypted record. The content body and the wrapped
// per-item DEK are stored as four opaque blobs.
type Bookmark struct {
	VaultID           string
	ItemID            string // client-generated
	NonceContent      []byte
	CiphertextContent []byte
	NonceWrap         []byte
	DEKWrapped        []byte
	ETag              string
	Version           int64 // >= 1
	Size              int64 // sum of the four blob lengths
	CreatedAt         int64
	UpdatedAt         int64
	DeletedAt         *int64 // tombstone marker
}

// PersistedBytes returns the blob concatenation the ETag commits to.
func (b *Bookmark) PersistedBytes() [][]byte {
	return [][]byte{b.NonceContent, b.CiphertextContent, b.NonceWrap, b.DEKWrapped}
}

// Tag is a per-item encrypted label. TagToken is an optional client-supplied
// blind index permitting equality lookup without revealing plaintext.
type Tag struct {
	VaultID           string
	TagID             string
	NonceContent      []byte
	CiphertextContent []byte
	TagToken          *string
	ETag              string
	Version           int64
	Size              int64
	CreatedAt         int64
	UpdatedAt         int64
	DeletedAt         *int64
}

// PersistedBytes returns the blob concatenation the ETag commits to.
// Tags commit to content nonce and ciphertext only; the token is excluded.
func (t *Tag) PersistedBytes() [][]byte {
	return [][]byte{t.NonceContent, t.CiphertextContent}
}

// BookmarkTag is a many-to-many link row between a bookmark and a tag of the
// same vault.
type BookmarkTag struct {
	VaultID   string
	ItemID    string
	TagID     string
	CreatedAt int64
}

// ListFilter narrows item listings. Cursor holds the already-decoded id the
// keyset scan resumes after; empty means start from the beginning.
type ListFilter struct {
	Limit          int
	Cursor         string
	IncludeDeleted bool
	UpdatedAfter   *int64  // strict >
	ByToken        *string // tags only; empty string matches NULL tag_token
}
