package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"strconv"
)

// ComputeETag returns the base64url (no padding) SHA-256 over
// utf8(vaultID) || utf8(decimal(version)) || payload...
//
// The tag depends only on committed state, so any two servers given the same
// inputs produce the same string and clients may compare tags directly.
func ComputeETag(vaultID string, version int64, payload ...[]byte) string {
	h := sha256.New()
	h.Write([]byte(vaultID))
	h.Write([]byte(strconv.FormatInt(version, 10)))
	for _, p := range payload {
		h.Write(p)
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
