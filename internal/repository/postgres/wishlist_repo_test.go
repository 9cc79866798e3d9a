package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/danaom/internal/errs"
	"github.com/and161185/danaom/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var wishCols = []string{"user_id", "external_item_id", "title", "image_url", "low_price", "original_link", "added_at"}

func TestWishlistRepo_InsertOrReplace(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewWishlistRepo(db)
	ctx := context.Background()
	it := &model.WishlistItem{
		UserID: 1, ExternalItemID: "https://shop/1", Title: ptr("t"), LowPrice: ptr("1000"),
		AddedAt: time.Unix(1700000000, 0).UTC(),
	}

	mock.ExpectExec(`INSERT INTO wishlist_items .* ON CONFLICT \(user_id, external_item_id\) DO UPDATE SET`).
		WithArgs(it.UserID, it.ExternalItemID, it.Title, it.ImageURL, it.LowPrice, it.OriginalLink, it.AddedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.InsertOrReplaceWishlistItem(ctx, it))

	mock.ExpectExec(`INSERT INTO wishlist_items`).
		WithArgs(it.UserID, it.ExternalItemID, it.Title, it.ImageURL, it.LowPrice, it.OriginalLink, it.AddedAt).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	require.ErrorIs(t, r.InsertOrReplaceWishlistItem(ctx, it), errs.ErrNotFound)
}

func TestWishlistRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewWishlistRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM wishlist_items WHERE user_id=\$1 AND external_item_id=\$2`).
		WithArgs(int64(1), "a").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.DeleteWishlistItem(ctx, &model.WishlistItem{UserID: 1, ExternalItemID: "a"}))

	mock.ExpectExec(`DELETE FROM wishlist_items WHERE user_id=\$1 AND external_item_id=\$2`).
		WithArgs(int64(1), "b").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.NoError(t, r.DeleteWishlistItemByKey(ctx, 1, "b"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWishlistRepo_List_NewestFirst(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewWishlistRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT user_id, external_item_id, title, image_url, low_price, original_link, added_at FROM wishlist_items WHERE user_id=\$1 ORDER BY added_at DESC`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows(wishCols).
			AddRow(int64(1), "b", ptr("B"), (*string)(nil), ptr("200"), (*string)(nil), now).
			AddRow(int64(1), "a", ptr("A"), (*string)(nil), ptr("100"), (*string)(nil), now.Add(-time.Hour)))
	items, err := r.ListWishlistItems(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "b", items[0].ExternalItemID)
	require.Equal(t, "A", *items[1].Title)
}

func TestWishlistRepo_GetForIDs(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewWishlistRepo(db)
	ctx := context.Background()

	// empty id set never hits the database
	items, err := r.GetWishlistItemsForIDs(ctx, 1, nil)
	require.NoError(t, err)
	require.Empty(t, items)

	ids := []string{"a", "b", "c"}
	mock.ExpectQuery(`SELECT .* FROM wishlist_items WHERE user_id=\$1 AND external_item_id = ANY\(\$2\)`).
		WithArgs(int64(1), ids).
		WillReturnRows(pgxmock.NewRows(wishCols).
			AddRow(int64(1), "b", (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), time.Now()))
	items, err = r.GetWishlistItemsForIDs(ctx, 1, ids)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "b", items[0].ExternalItemID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWishlistRepo_GetOne(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewWishlistRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT .* FROM wishlist_items WHERE user_id=\$1 AND external_item_id=\$2`).
		WithArgs(int64(1), "a").
		WillReturnRows(pgxmock.NewRows(wishCols).
			AddRow(int64(1), "a", ptr("A"), (*string)(nil), (*string)(nil), (*string)(nil), time.Now()))
	it, err := r.GetWishlistItem(ctx, 1, "a")
	require.NoError(t, err)
	require.Equal(t, "A", *it.Title)

	mock.ExpectQuery(`SELECT .* FROM wishlist_items WHERE user_id=\$1 AND external_item_id=\$2`).
		WithArgs(int64(1), "z").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetWishlistItem(ctx, 1, "z")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_Close(t *testing.T) {
	db, mock := newDB(t)
	s := NewStore(db)
	mock.ExpectClose()
	require.NoError(t, s.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}
