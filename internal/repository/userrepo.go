// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/danaom/internal/model"
)

// UserRepository provides CRUD access for users.
type UserRepository interface {
	// InsertUser inserts a new user; a duplicate (email, address) pair is silently ignored.
	InsertUser(ctx context.Context, u *model.User) error
	// GetUserByEmail loads a user by email.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// GetUserByID loads a user by ID.
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	// LastUser returns the most recently created user.
	LastUser(ctx context.Context) (*model.User, error)
	// ListUsers returns all users ordered by name.
	ListUsers(ctx context.Context) ([]model.User, error)
	// UpdateUser replaces the row with the same ID; a missing row is a no-op.
	UpdateUser(ctx context.Context, u *model.User) error
	// UpsertUser inserts the user or overwrites the row with the same ID.
	UpsertUser(ctx context.Context, u *model.User) error
	// DeleteUser removes the user and, by cascade, its wishlist.
	DeleteUser(ctx context.Context, u *model.User) error
	// DeleteUserByID removes the user with the given ID and its wishlist.
	DeleteUserByID(ctx context.Context, id int64) error
}
