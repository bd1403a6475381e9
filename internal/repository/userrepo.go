// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/aoculi/sanctuary/internal/model"
)

// UserRepository provides access to user identities and credentials.
type UserRepository interface {
	// Create inserts a new user. Returns errs.ErrConflict when the login is taken.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by id.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByLogin loads a user by login (case-sensitive).
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	// SetWrappedKey stores the client-produced wrapped master key.
	SetWrappedKey(ctx context.Context, id string, wk model.WrappedKey, updatedAt int64) error
}
