package memory

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/danaom/internal/errs"
	"github.com/and161185/danaom/internal/model"
	"github.com/and161185/danaom/internal/repository"
	"github.com/stretchr/testify/require"
)

var _ repository.Store = (*Repo)(nil)

func ptr(s string) *string { return &s }

func TestRepo_UniqueEmailAddress(t *testing.T) {
	r := New()
	ctx := context.Background()

	a := &model.User{Name: "pw", Email: "a@x", Address: ptr("Seoul")}
	require.NoError(t, r.InsertUser(ctx, a))
	require.EqualValues(t, 1, a.ID)

	dup := &model.User{Name: "pw2", Email: "a@x", Address: ptr("Seoul")}
	require.NoError(t, r.InsertUser(ctx, dup))
	require.Zero(t, dup.ID)

	// NULL addresses never collide
	require.NoError(t, r.InsertUser(ctx, &model.User{Name: "n1", Email: "a@x"}))
	require.NoError(t, r.InsertUser(ctx, &model.User{Name: "n2", Email: "a@x"}))

	users, err := r.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)

	got, err := r.GetUserByEmail(ctx, "a@x")
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	b := &model.User{Name: "b", Email: "b@x", Address: ptr("Seoul")}
	require.NoError(t, r.InsertUser(ctx, b))
	b.Email = "a@x"
	require.ErrorIs(t, r.UpdateUser(ctx, b), errs.ErrAlreadyExists)
}

func TestRepo_CascadeAndOrdering(t *testing.T) {
	r := New()
	ctx := context.Background()
	u := &model.User{Name: "pw", Email: "a@x"}
	require.NoError(t, r.InsertUser(ctx, u))

	require.ErrorIs(t, r.InsertOrReplaceWishlistItem(ctx, &model.WishlistItem{UserID: 99, ExternalItemID: "x"}), errs.ErrNotFound)

	t0 := time.Unix(100, 0)
	require.NoError(t, r.InsertOrReplaceWishlistItem(ctx, &model.WishlistItem{UserID: u.ID, ExternalItemID: "a", AddedAt: t0}))
	require.NoError(t, r.InsertOrReplaceWishlistItem(ctx, &model.WishlistItem{UserID: u.ID, ExternalItemID: "b", AddedAt: t0.Add(time.Second)}))

	items, err := r.ListWishlistItems(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "b", items[0].ExternalItemID)

	batch, err := r.GetWishlistItemsForIDs(ctx, u.ID, []string{"a", "a", "zz"})
	require.NoError(t, err)
	require.Len(t, batch, 1)

	require.NoError(t, r.DeleteUser(ctx, u))
	items, err = r.ListWishlistItems(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, items)
	_, err = r.GetWishlistItem(ctx, u.ID, "a")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRepo_InsertUser_AfterExplicitID(t *testing.T) {
	r := New()
	ctx := context.Background()

	require.NoError(t, r.UpsertUser(ctx, &model.User{ID: 50, Name: "pw", Email: "pinned@x.com"}))

	u := &model.User{Name: "pw", Email: "fresh@x.com"}
	require.NoError(t, r.InsertUser(ctx, u))
	require.EqualValues(t, 51, u.ID)
}
