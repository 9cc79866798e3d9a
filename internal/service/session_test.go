package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/danaom/internal/errs"
	"github.com/and161185/danaom/internal/model"
	"github.com/and161185/danaom/internal/repository/memory"
	"github.com/and161185/danaom/internal/store"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	*store.Store

	getByEmailErr error
	insertWishErr error
	forIDsErr     error
}

func (f *flakyStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if f.getByEmailErr != nil {
		return nil, f.getByEmailErr
	}
	return f.Store.GetUserByEmail(ctx, email)
}

func (f *flakyStore) InsertOrReplaceWishlistItem(ctx context.Context, it *model.WishlistItem) error {
	if f.insertWishErr != nil {
		return f.insertWishErr
	}
	return f.Store.InsertOrReplaceWishlistItem(ctx, it)
}

func (f *flakyStore) GetWishlistItemsForIDs(ctx context.Context, userID int64, ids []string) ([]model.WishlistItem, error) {
	if f.forIDsErr != nil {
		return nil, f.forIDsErr
	}
	return f.Store.GetWishlistItemsForIDs(ctx, userID, ids)
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newSession(t *testing.T) (*Session, *flakyStore) {
	t.Helper()
	st := &flakyStore{Store: store.New(memory.New(), nil)}
	s := NewSession(st, WithClock(func() time.Time { return t0 }))
	t.Cleanup(s.Close)
	return s, st
}

func addUser(t *testing.T, st *flakyStore, name, email string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: email}
	require.NoError(t, st.InsertUser(context.Background(), u))
	require.NotZero(t, u.ID)
	return u
}

func TestLogin_Scenario(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()
	addUser(t, st, "pw1", "a@x.com")

	require.Equal(t, model.LoginIdle, s.LoginState())

	require.Equal(t, model.LoginErrorInvalidPassword, s.Login(ctx, "a@x.com", "wrong"))
	require.Equal(t, "", s.CurrentUID())
	require.Nil(t, s.CurrentUser())
	require.NotEmpty(t, s.ErrorMessage())

	require.Equal(t, model.LoginSuccess, s.Login(ctx, "a@x.com", "pw1"))
	require.Equal(t, "1", s.CurrentUID())
	require.Empty(t, s.ErrorMessage())
	require.NotEmpty(t, s.SessionID())
	require.False(t, s.IsAdmin())

	require.Equal(t, model.LoginErrorUserNotFound, s.Login(ctx, "b@x.com", "pw1"))
	require.Equal(t, "1", s.CurrentUID())
}

func TestLogin_StoreFailure(t *testing.T) {
	s, st := newSession(t)
	st.getByEmailErr = errors.New("database is locked")

	require.Equal(t, model.LoginErrorUnknown, s.Login(context.Background(), "a@x.com", "pw1"))
	require.Contains(t, s.ErrorMessage(), "database is locked")
	require.Equal(t, "", s.CurrentUID())
}

func TestLogout_ClearsEverything(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()
	addUser(t, st, "pw", "a@x")
	require.Equal(t, model.LoginSuccess, s.Login(ctx, "a@x", "pw"))
	_, err := s.ToggleMembership(ctx, model.CatalogItem{Link: "l1"})
	require.NoError(t, err)
	require.Len(t, s.Wishlist(), 1)

	s.Logout()
	require.Equal(t, model.LoginIdle, s.LoginState())
	require.Nil(t, s.CurrentUser())
	require.Empty(t, s.CurrentUID())
	require.Empty(t, s.SessionID())
	require.Empty(t, s.Wishlist())
	require.Empty(t, s.Membership())

	// logging out twice is fine
	s.Logout()
}

func TestToggleMembership_DoubleToggleRestores(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()
	u := addUser(t, st, "pw", "a@x")
	require.Equal(t, model.LoginSuccess, s.Login(ctx, "a@x", "pw"))

	item := model.CatalogItem{Title: "<b>Shoe</b>", Link: "https://s/1", Image: "img", LowPrice: "1000", OriginalLink: "https://o/1"}
	before := s.FetchMembershipStatus(ctx, []model.CatalogItem{item})
	require.Equal(t, map[string]bool{}, before)

	added, err := s.ToggleMembership(ctx, item)
	require.NoError(t, err)
	require.True(t, added)
	require.True(t, s.IsWishlisted(item.Link))

	row, err := st.GetWishlistItem(ctx, u.ID, item.Link)
	require.NoError(t, err)
	require.Equal(t, "<b>Shoe</b>", *row.Title)
	require.Equal(t, "https://o/1", *row.OriginalLink)
	require.True(t, row.AddedAt.Equal(t0))

	wl := s.Wishlist()
	require.Len(t, wl, 1)
	require.Equal(t, item.Link, wl[0].ExternalItemID)

	added, err = s.ToggleMembership(ctx, item)
	require.NoError(t, err)
	require.False(t, added)

	require.Equal(t, before, s.Membership())
	rows, err := st.ListWishlistItems(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, rows)
	require.Empty(t, s.Wishlist())
}

func TestToggleMembership_Guards(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()

	_, err := s.ToggleMembership(ctx, model.CatalogItem{Link: "l"})
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	addUser(t, st, "pw", "a@x")
	require.Equal(t, model.LoginSuccess, s.Login(ctx, "a@x", "pw"))
	_, err = s.ToggleMembership(ctx, model.CatalogItem{Title: "no link"})
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	require.Empty(t, s.Membership())
}

func TestToggleMembership_StoreFailureKeepsMap(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()
	addUser(t, st, "pw", "a@x")
	require.Equal(t, model.LoginSuccess, s.Login(ctx, "a@x", "pw"))

	boom := errors.New("disk I/O error")
	st.insertWishErr = boom
	_, err := s.ToggleMembership(ctx, model.CatalogItem{Link: "l1"})
	require.ErrorIs(t, err, boom)
	require.False(t, s.IsWishlisted("l1"))
	require.Contains(t, s.ErrorMessage(), "disk I/O error")
}

func TestFetchMembershipStatus(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()
	cands := []model.CatalogItem{{Link: "a"}, {Link: "b"}, {Title: "linkless"}}

	// logged out: all false
	require.Equal(t, map[string]bool{"a": false, "b": false}, s.FetchMembershipStatus(ctx, cands))

	u := addUser(t, st, "pw", "a@x")
	require.NoError(t, st.InsertOrReplaceWishlistItem(ctx, &model.WishlistItem{UserID: u.ID, ExternalItemID: "b", AddedAt: t0}))
	require.NoError(t, st.InsertOrReplaceWishlistItem(ctx, &model.WishlistItem{UserID: u.ID, ExternalItemID: "zz", AddedAt: t0}))
	require.Equal(t, model.LoginSuccess, s.Login(ctx, "a@x", "pw"))
	require.True(t, s.IsWishlisted("zz"))

	got := s.FetchMembershipStatus(ctx, cands)
	require.Equal(t, map[string]bool{"b": true}, got)
	require.False(t, s.IsWishlisted("a"))
	require.True(t, s.IsWishlisted("b"))

	st.forIDsErr = errors.New("boom")
	require.Equal(t, map[string]bool{"a": false, "b": false}, s.FetchMembershipStatus(ctx, cands))
	require.Contains(t, s.ErrorMessage(), "boom")
}

func TestAdmin_DerivationAndCascadeDelete(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()
	addUser(t, st, "root", AdminEmail)
	victim := addUser(t, st, "bob", "bob@x")
	require.NoError(t, st.InsertOrReplaceWishlistItem(ctx, &model.WishlistItem{UserID: victim.ID, ExternalItemID: "l1", AddedAt: t0}))

	var last []model.WishlistItem
	cancel, err := st.SubscribeWishlist(ctx, victim.ID, func(items []model.WishlistItem) { last = items })
	require.NoError(t, err)
	defer cancel()
	require.Len(t, last, 1)

	require.Equal(t, model.LoginSuccess, s.Login(ctx, AdminEmail, "root"))
	require.True(t, s.IsAdmin())
	require.Len(t, s.AdminUsers(), 2)
	require.Equal(t, "bob", s.AdminUsers()[0].Name)

	err = s.AdminDeleteSelectedUser(ctx)
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	require.NotEmpty(t, s.AdminMessage())

	s.SelectUserForAdmin(victim)
	require.NoError(t, s.AdminDeleteSelectedUser(ctx))
	require.Nil(t, s.SelectedUser())
	require.Contains(t, s.AdminMessage(), "bob@x")
	require.Empty(t, last)
	require.Len(t, s.AdminUsers(), 1)

	rows, err := st.ListWishlistItems(ctx, victim.ID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestAdmin_DeletingOwnAccountLogsOut(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()
	admin := addUser(t, st, "root", AdminEmail)
	addUser(t, st, "bob", "bob@x")
	require.NoError(t, st.InsertOrReplaceWishlistItem(ctx, &model.WishlistItem{UserID: admin.ID, ExternalItemID: "l1", AddedAt: t0}))
	require.Equal(t, model.LoginSuccess, s.Login(ctx, AdminEmail, "root"))
	require.True(t, s.IsWishlisted("l1"))

	s.SelectUserForAdmin(admin)
	require.NoError(t, s.AdminDeleteSelectedUser(ctx))

	require.Nil(t, s.CurrentUser())
	require.False(t, s.IsAdmin())
	require.Empty(t, s.SessionID())
	require.Equal(t, model.LoginIdle, s.LoginState())
	require.Empty(t, s.AdminUsers())
	require.Empty(t, s.Wishlist())
	require.False(t, s.IsWishlisted("l1"))

	// a new admin user does not reach the closed session
	addUser(t, st, "root2", AdminEmail)
	require.Empty(t, s.AdminUsers())
}

func TestAdmin_LosingAdminClearsList(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()
	admin := addUser(t, st, "root", AdminEmail)
	addUser(t, st, "bob", "bob@x")
	require.Equal(t, model.LoginSuccess, s.Login(ctx, AdminEmail, "root"))
	require.Len(t, s.AdminUsers(), 2)

	demoted := *admin
	demoted.Email = "root@x"
	res := s.UpdateUserInformation(ctx, demoted)
	require.True(t, res.Success)
	require.False(t, s.IsAdmin())
	require.Empty(t, s.AdminUsers())
	require.Equal(t, "root@x", s.CurrentUser().Email)

	require.ErrorIs(t, s.LoadAllUsersForAdmin(), errs.ErrForbidden)
	require.ErrorIs(t, s.AdminDeleteSelectedUser(ctx), errs.ErrForbidden)
	require.ErrorIs(t, s.AdminAddOrUpdateUser(ctx, model.User{Email: "c@x"}, true), errs.ErrForbidden)

	// later user writes do not leak into the cleared list
	addUser(t, st, "carol", "carol@x")
	require.Empty(t, s.AdminUsers())
}

func TestAdminAddOrUpdateUser_KeepsWishlist(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()
	addUser(t, st, "root", AdminEmail)
	bob := addUser(t, st, "bob", "bob@x")
	require.NoError(t, st.InsertOrReplaceWishlistItem(ctx, &model.WishlistItem{UserID: bob.ID, ExternalItemID: "l1", AddedAt: t0}))
	require.Equal(t, model.LoginSuccess, s.Login(ctx, AdminEmail, "root"))

	edited := *bob
	edited.Name = "robert"
	s.SelectUserForAdmin(&edited)
	require.NoError(t, s.AdminAddOrUpdateUser(ctx, edited, false))
	require.Equal(t, "user updated", s.AdminMessage())
	require.Nil(t, s.SelectedUser())

	got, err := st.GetUserByID(ctx, bob.ID)
	require.NoError(t, err)
	require.Equal(t, "robert", got.Name)
	rows, err := st.ListWishlistItems(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, s.AdminAddOrUpdateUser(ctx, model.User{ID: bob.ID, Name: "dave", Email: "dave@x"}, true))
	require.Equal(t, "user added", s.AdminMessage())
	require.Len(t, s.AdminUsers(), 3)

	err = s.AdminAddOrUpdateUser(ctx, model.User{Name: "noemail"}, true)
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	require.Contains(t, s.AdminMessage(), "email is required")
}

func TestRegister(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()
	addr := "Seoul"

	id, err := s.Register(ctx, model.User{Name: "pw", Email: "a@x", Address: &addr})
	require.NoError(t, err)
	require.NotZero(t, id)

	id, err = s.Register(ctx, model.User{Name: "other", Email: "a@x", Address: &addr})
	require.NoError(t, err)
	require.Zero(t, id)

	_, err = s.Register(ctx, model.User{Name: "pw"})
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	require.Contains(t, s.ErrorMessage(), "email is required")

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestProfile_LoadAndUpdate(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()
	u := addUser(t, st, "pw", "a@x")

	_, err := s.LoadUserByID(ctx, "abc")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	require.Equal(t, "invalid id format", s.ErrorMessage())
	require.Nil(t, s.UserForInfoScreen())

	_, err = s.LoadUserForInfoScreen(ctx, "42")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Contains(t, s.ErrorMessage(), "42")

	got, err := s.LoadUserByID(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, u.Email, got.Email)
	require.Empty(t, s.ErrorMessage())
	require.False(t, s.Loading())

	require.Equal(t, model.LoginSuccess, s.Login(ctx, "a@x", "pw"))
	require.NoError(t, st.InsertOrReplaceWishlistItem(ctx, &model.WishlistItem{UserID: u.ID, ExternalItemID: "l1", AddedAt: t0}))
	s.PrepareForMyInfoEdit()
	screen := s.UserForInfoScreen()
	require.Equal(t, u.ID, screen.ID)

	phone := "010-1234"
	screen.Phone = &phone
	res := s.UpdateUserInformation(ctx, *screen)
	require.True(t, res.Success)
	require.Equal(t, "010-1234", *s.CurrentUser().Phone)
	require.Equal(t, "010-1234", *s.UserForInfoScreen().Phone)
	// same uid: the wishlist stays subscribed
	require.Len(t, s.Wishlist(), 1)

	screen.Email = ""
	res = s.UpdateUserInformation(ctx, *screen)
	require.False(t, res.Success)
	require.NotEmpty(t, res.Message)
	require.Equal(t, "a@x", s.CurrentUser().Email)
}

func TestClose_StopsSubscriptions(t *testing.T) {
	st := &flakyStore{Store: store.New(memory.New(), nil)}
	s := NewSession(st)
	ctx := context.Background()
	u := addUser(t, st, "pw", "a@x")
	require.Equal(t, model.LoginSuccess, s.Login(ctx, "a@x", "pw"))

	s.Close()
	require.NoError(t, st.InsertOrReplaceWishlistItem(ctx, &model.WishlistItem{UserID: u.ID, ExternalItemID: "late", AddedAt: t0}))
	require.Empty(t, s.Wishlist())
}
