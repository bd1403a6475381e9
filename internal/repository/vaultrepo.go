package repository

import (
	"context"

	"github.com/aoculi/sanctuary/internal/model"
)

// VaultRepository manages per-user vault roots and their manifests.
type VaultRepository interface {
	// GetByUserID loads the user's vault, or errs.ErrNotFound.
	GetByUserID(ctx context.Context, userID string) (*model.Vault, error)
	// Ensure creates the vault if absent and returns the current row.
	// The uniqueness constraint on user_id guarantees one vault per user.
	Ensure(ctx context.Context, v *model.Vault) (*model.Vault, error)
	// GetManifest loads the vault's manifest, or errs.ErrNotFound.
	GetManifest(ctx context.Context, vaultID string) (*model.Manifest, error)
	// HasManifest reports whether a manifest row exists.
	HasManifest(ctx context.Context, vaultID string) (bool, error)
	// UpsertManifest commits a manifest write under optimistic concurrency:
	// the new version must equal the current vault version + 1, and when the
	// current version is positive ifMatch must equal the stored ETag.
	// Reports whether this was the first write (version 0 -> 1).
	UpsertManifest(ctx context.Context, m *model.Manifest, ifMatch *string) (created bool, err error)
}
