// Package service contains application services for authentication, vaults,
// items, and links.
package service

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Payload size caps enforced before any persistence.
const (
	// ManifestMaxBytes caps the manifest ciphertext.
	ManifestMaxBytes = 5_000_000
	// ItemMaxBytes caps the summed blob lengths of a bookmark or tag.
	ItemMaxBytes = 65_536
)

// newID returns a prefixed opaque identifier.
func newID(prefix string) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return prefix + id.String(), nil
}

// nowMillis returns the current time in milliseconds since the epoch.
func nowMillis() int64 { return time.Now().UnixMilli() }
