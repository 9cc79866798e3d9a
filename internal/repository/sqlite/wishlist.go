package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/and161185/danaom/internal/model"
)

// wishlistRow stores added_at as unix milliseconds.
type wishlistRow struct {
	UserID         int64   `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	ExternalItemID string  `gorm:"column:external_item_id;primaryKey"`
	Title          *string `gorm:"column:title"`
	ImageURL       *string `gorm:"column:image_url"`
	LowPrice       *string `gorm:"column:low_price"`
	OriginalLink   *string `gorm:"column:original_link"`
	AddedAt        int64   `gorm:"column:added_at"`
}

func (wishlistRow) TableName() string { return "wishlist_items" }

func toWishlistRow(it *model.WishlistItem) wishlistRow {
	return wishlistRow{
		UserID: it.UserID, ExternalItemID: it.ExternalItemID,
		Title: it.Title, ImageURL: it.ImageURL, LowPrice: it.LowPrice, OriginalLink: it.OriginalLink,
		AddedAt: it.AddedAt.UnixMilli(),
	}
}

func (r wishlistRow) toModel() model.WishlistItem {
	return model.WishlistItem{
		UserID: r.UserID, ExternalItemID: r.ExternalItemID,
		Title: r.Title, ImageURL: r.ImageURL, LowPrice: r.LowPrice, OriginalLink: r.OriginalLink,
		AddedAt: time.UnixMilli(r.AddedAt).UTC(),
	}
}

func toWishlistModels(rows []wishlistRow) []model.WishlistItem {
	items := make([]model.WishlistItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toModel())
	}
	return items
}

// InsertOrReplaceWishlistItem stores it, replacing a row with the same key.
func (s *Store) InsertOrReplaceWishlistItem(ctx context.Context, it *model.WishlistItem) error {
	row := toWishlistRow(it)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "external_item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "image_url", "low_price", "original_link", "added_at"}),
		}).
		Create(&row).Error
	return mapErr("insert wishlist item", err)
}

// DeleteWishlistItem removes the row keyed by it.
func (s *Store) DeleteWishlistItem(ctx context.Context, it *model.WishlistItem) error {
	return s.DeleteWishlistItemByKey(ctx, it.UserID, it.ExternalItemID)
}

// DeleteWishlistItemByKey removes the row for (userID, externalItemID) if any.
func (s *Store) DeleteWishlistItemByKey(ctx context.Context, userID int64, externalItemID string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND external_item_id = ?", userID, externalItemID).
		Delete(&wishlistRow{}).Error
	return mapErr("delete wishlist item", err)
}

// ListWishlistItems returns the user's wishlist, newest first.
func (s *Store) ListWishlistItems(ctx context.Context, userID int64) ([]model.WishlistItem, error) {
	var rows []wishlistRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("added_at DESC").Find(&rows).Error
	if err != nil {
		return nil, mapErr("list wishlist", err)
	}
	return toWishlistModels(rows), nil
}

// GetWishlistItem loads one row or returns errs.ErrNotFound.
func (s *Store) GetWishlistItem(ctx context.Context, userID int64, externalItemID string) (*model.WishlistItem, error) {
	var row wishlistRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND external_item_id = ?", userID, externalItemID).
		Take(&row).Error
	if err != nil {
		return nil, mapErr("get wishlist item", err)
	}
	it := row.toModel()
	return &it, nil
}

// GetWishlistItemsForIDs returns the saved rows among ids.
func (s *Store) GetWishlistItemsForIDs(ctx context.Context, userID int64, ids []string) ([]model.WishlistItem, error) {
	if len(ids) == 0 {
		return []model.WishlistItem{}, nil
	}
	var rows []wishlistRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND external_item_id IN ?", userID, ids).
		Find(&rows).Error
	if err != nil {
		return nil, mapErr("wishlist membership", err)
	}
	return toWishlistModels(rows), nil
}
