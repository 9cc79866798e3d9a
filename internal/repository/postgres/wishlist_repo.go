package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/danaom/internal/errs"
	"github.com/and161185/danaom/internal/model"
	"github.com/jackc/pgx/v5"
)

// WishlistRepo implements WishlistRepository using PostgreSQL.
type WishlistRepo struct{ db *DB }

// NewWishlistRepo constructs a wishlist repository.
func NewWishlistRepo(db *DB) *WishlistRepo { return &WishlistRepo{db: db} }

const wishlistColumns = `user_id, external_item_id, title, image_url, low_price, original_link, added_at`

// InsertOrReplaceWishlistItem upserts by (user_id, external_item_id).
func (r *WishlistRepo) InsertOrReplaceWishlistItem(ctx context.Context, it *model.WishlistItem) error {
	const q = `
INSERT INTO wishlist_items (user_id, external_item_id, title, image_url, low_price, original_link, added_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, external_item_id) DO UPDATE SET
    title=EXCLUDED.title, image_url=EXCLUDED.image_url, low_price=EXCLUDED.low_price,
    original_link=EXCLUDED.original_link, added_at=EXCLUDED.added_at`
	_, err := r.db.Pool.Exec(ctx, q, it.UserID, it.ExternalItemID, it.Title, it.ImageURL, it.LowPrice, it.OriginalLink, it.AddedAt)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("user %d: %w", it.UserID, errs.ErrNotFound)
	}
	return err
}

// DeleteWishlistItem removes the row keyed by it.
func (r *WishlistRepo) DeleteWishlistItem(ctx context.Context, it *model.WishlistItem) error {
	return r.DeleteWishlistItemByKey(ctx, it.UserID, it.ExternalItemID)
}

// DeleteWishlistItemByKey removes one row; a missing row is not an error.
func (r *WishlistRepo) DeleteWishlistItemByKey(ctx context.Context, userID int64, externalItemID string) error {
	const q = `DELETE FROM wishlist_items WHERE user_id=$1 AND external_item_id=$2`
	_, err := r.db.Pool.Exec(ctx, q, userID, externalItemID)
	return err
}

// ListWishlistItems returns the user's rows, newest first.
func (r *WishlistRepo) ListWishlistItems(ctx context.Context, userID int64) ([]model.WishlistItem, error) {
	q := `SELECT ` + wishlistColumns + ` FROM wishlist_items WHERE user_id=$1 ORDER BY added_at DESC`
	return r.query(ctx, q, userID)
}

// GetWishlistItem selects a single row.
func (r *WishlistRepo) GetWishlistItem(ctx context.Context, userID int64, externalItemID string) (*model.WishlistItem, error) {
	q := `SELECT ` + wishlistColumns + ` FROM wishlist_items WHERE user_id=$1 AND external_item_id=$2`
	var it model.WishlistItem
	err := r.db.Pool.QueryRow(ctx, q, userID, externalItemID).
		Scan(&it.UserID, &it.ExternalItemID, &it.Title, &it.ImageURL, &it.LowPrice, &it.OriginalLink, &it.AddedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("select wishlist item: %w", err)
	}
	return &it, nil
}

// GetWishlistItemsForIDs returns the saved rows among ids in one round trip.
func (r *WishlistRepo) GetWishlistItemsForIDs(ctx context.Context, userID int64, ids []string) ([]model.WishlistItem, error) {
	if len(ids) == 0 {
		return []model.WishlistItem{}, nil
	}
	q := `SELECT ` + wishlistColumns + ` FROM wishlist_items WHERE user_id=$1 AND external_item_id = ANY($2)`
	return r.query(ctx, q, userID, ids)
}

func (r *WishlistRepo) query(ctx context.Context, q string, args ...any) ([]model.WishlistItem, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query wishlist: %w", err)
	}
	defer rows.Close()

	items := []model.WishlistItem{}
	for rows.Next() {
		var it model.WishlistItem
		if err := rows.Scan(&it.UserID, &it.ExternalItemID, &it.Title, &it.ImageURL, &it.LowPrice, &it.OriginalLink, &it.AddedAt); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wishlist: %w", err)
	}
	return items, nil
}
