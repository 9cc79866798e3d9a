package repository

import (
	"context"

	"github.com/and161185/danaom/internal/model"
)

// WishlistRepository provides access to per-user wishlist rows.
type WishlistRepository interface {
	// InsertOrReplaceWishlistItem stores the item, replacing an existing row with the same key.
	InsertOrReplaceWishlistItem(ctx context.Context, item *model.WishlistItem) error
	// DeleteWishlistItem removes the row keyed by item.UserID and item.ExternalItemID.
	DeleteWishlistItem(ctx context.Context, item *model.WishlistItem) error
	// DeleteWishlistItemByKey removes a single row by its composite key.
	DeleteWishlistItemByKey(ctx context.Context, userID int64, externalItemID string) error
	// ListWishlistItems returns a user's wishlist, newest first.
	ListWishlistItems(ctx context.Context, userID int64) ([]model.WishlistItem, error)
	// GetWishlistItem returns a single row or errs.ErrNotFound.
	GetWishlistItem(ctx context.Context, userID int64, externalItemID string) (*model.WishlistItem, error)
	// GetWishlistItemsForIDs returns the rows among ids that the user has saved.
	GetWishlistItemsForIDs(ctx context.Context, userID int64, ids []string) ([]model.WishlistItem, error)
}

// Store is the full persistence contract used by the application.
type Store interface {
	UserRepository
	WishlistRepository
	// Close releases the underlying connection.
	Close() error
}
