// Package crypto implements server-side password hashing, KDF parameter
// generation, and content-hash ETag computation.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/aoculi/sanctuary/internal/errs"
)

// Params holds the Argon2id cost configuration for the server-side verifier.
type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// DefaultParams is the deployment configuration (512 MiB). Tests drop the
// memory cost to keep hashing fast.
var DefaultParams = Params{
	Memory:      512 * 1024,
	Time:        3,
	Parallelism: 1,
	SaltLen:     16,
	KeyLen:      32,
}

// TestParams trades memory hardness for speed (64 MiB floor).
var TestParams = Params{
	Memory:      64 * 1024,
	Time:        2,
	Parallelism: 1,
	SaltLen:     16,
	KeyLen:      32,
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashPassword returns the PHC-encoded Argon2id hash of password with a
// fresh random salt:
//
//	$argon2id$v=19$m=<KiB>,t=<n>,p=<n>$<b64(salt)>$<b64(hash)>
func HashPassword(password string, p Params) (string, error) {
	salt, err := RandBytes(int(p.SaltLen))
	if err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword recomputes the hash with the parameters embedded in the PHC
// string and compares in constant time.
func VerifyPassword(password, phc string) (bool, error) {
	p, salt, key, err := decodePHC(phc)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(got, key) == 1, nil
}

// decodePHC parses a $argon2id$ PHC string into costs, salt, and key.
func decodePHC(phc string) (Params, []byte, []byte, error) {
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Params{}, nil, nil, fmt.Errorf("malformed password hash: %w", errs.ErrValidation)
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, fmt.Errorf("malformed password hash: %w", errs.ErrValidation)
	}
	if version != argon2.Version {
		return Params{}, nil, nil, fmt.Errorf("incompatible argon2 version %d: %w", version, errs.ErrValidation)
	}
	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return Params{}, nil, nil, fmt.Errorf("malformed password hash: %w", errs.ErrValidation)
	}
	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, fmt.Errorf("malformed password hash: %w", errs.ErrValidation)
	}
	key, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, fmt.Errorf("malformed password hash: %w", errs.ErrValidation)
	}
	return p, salt, key, nil
}
