package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	pkgcrypto "github.com/aoculi/sanctuary/internal/crypto"
	"github.com/aoculi/sanctuary/internal/errs"
	"github.com/aoculi/sanctuary/internal/model"
	"github.com/aoculi/sanctuary/internal/repository"
)

// PutManifest is the manifest upsert input. Blobs arrive already decoded
// from canonical base64; IfMatch is nil when the header was absent.
type PutManifest struct {
	Version      int64
	Nonce        []byte
	Ciphertext   []byte
	DeclaredSize *int64
	IfMatch      *string
}

// VaultService manages the per-user vault root and its manifest.
type VaultService interface {
	// GetVault lazily materializes the vault and reports manifest presence.
	GetVault(ctx context.Context, userID string) (*model.Vault, bool, error)
	// GetManifest returns the manifest blob, or not-found if none was written.
	GetManifest(ctx context.Context, userID string) (*model.Manifest, error)
	// UpsertManifest commits a CAS-guarded manifest write. Reports whether
	// this was the first write (version 0 -> 1).
	UpsertManifest(ctx context.Context, userID string, in PutManifest) (*model.Manifest, bool, error)
}

type VaultServiceImpl struct {
	vaults repository.VaultRepository
	log    *zap.Logger
}

// NewVaultService constructs VaultService.
func NewVaultService(vaults repository.VaultRepository, log *zap.Logger) *VaultServiceImpl {
	return &VaultServiceImpl{vaults: vaults, log: log}
}

// ensureVault returns the user's vault, creating it on first access.
func (s *VaultServiceImpl) ensureVault(ctx context.Context, userID string) (*model.Vault, error) {
	v, err := s.vaults.GetByUserID(ctx, userID)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	id, err := newID("vlt_")
	if err != nil {
		return nil, err
	}
	return s.vaults.Ensure(ctx, &model.Vault{
		ID:        id,
		UserID:    userID,
		UpdatedAt: nowMillis(),
	})
}

// GetVault lazily materializes the vault.
func (s *VaultServiceImpl) GetVault(ctx context.Context, userID string) (*model.Vault, bool, error) {
	v, err := s.ensureVault(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	has, err := s.vaults.HasManifest(ctx, v.ID)
	if err != nil {
		return nil, false, err
	}
	return v, has, nil
}

// GetManifest returns the manifest, materializing the vault first so the
// 404 refers to the manifest, never the vault.
func (s *VaultServiceImpl) GetManifest(ctx context.Context, userID string) (*model.Manifest, error) {
	v, err := s.ensureVault(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.vaults.GetManifest(ctx, v.ID)
}

// UpsertManifest validates sizes and version shape, then delegates the
// version/ETag check to the repository's transaction.
func (s *VaultServiceImpl) UpsertManifest(ctx context.Context, userID string, in PutManifest) (*model.Manifest, bool, error) {
	if in.Version < 1 {
		return nil, false, fmt.Errorf("version must be positive: %w", errs.ErrValidation)
	}
	if len(in.Ciphertext) == 0 {
		return nil, false, fmt.Errorf("empty ciphertext: %w", errs.ErrValidation)
	}
	if len(in.Ciphertext) > ManifestMaxBytes {
		return nil, false, fmt.Errorf("manifest exceeds %d bytes: %w", ManifestMaxBytes, errs.ErrPayloadTooLarge)
	}

	v, err := s.ensureVault(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	size := int64(len(in.Ciphertext))
	if in.DeclaredSize != nil && *in.DeclaredSize != size {
		// The server-computed size is authoritative; a mismatch is logged, not fatal.
		s.log.Warn("manifest size mismatch",
			zap.String("vault_id", v.ID),
			zap.Int64("declared", *in.DeclaredSize),
			zap.Int64("actual", size),
		)
	}

	m := &model.Manifest{
		VaultID:    v.ID,
		Version:    in.Version,
		ETag:       pkgcrypto.ComputeETag(v.ID, in.Version, in.Nonce, in.Ciphertext),
		Nonce:      in.Nonce,
		Ciphertext: in.Ciphertext,
		Size:       size,
		UpdatedAt:  nowMillis(),
	}
	created, err := s.vaults.UpsertManifest(ctx, m, in.IfMatch)
	if err != nil {
		return nil, false, err
	}
	return m, created, nil
}
