// Package store layers live snapshot streams over a repository.Store: every
// successful write republishes the affected user list or wishlist.
package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/danaom/internal/live"
	"github.com/and161185/danaom/internal/model"
	"github.com/and161185/danaom/internal/repository"
)

// Store is an observable DAO. Reads pass straight through to the wrapped store.
type Store struct {
	repository.Store
	log *zap.Logger

	users live.Feed[[]model.User]

	mu        sync.Mutex
	wishlists map[int64]*live.Feed[[]model.WishlistItem]
}

// New wraps repo. A nil logger discards output.
func New(repo repository.Store, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{Store: repo, log: log, wishlists: make(map[int64]*live.Feed[[]model.WishlistItem])}
}

// SubscribeUsers delivers the full user list, ordered by name, now and after
// every change to the users table. The subscription ends when ctx is done or
// cancel is called.
func (s *Store) SubscribeUsers(ctx context.Context, fn func([]model.User)) (cancel func(), err error) {
	err = s.users.Prime(func() ([]model.User, error) { return s.Store.ListUsers(ctx) })
	if err != nil {
		return nil, err
	}
	return bind(ctx, s.users.Subscribe(fn)), nil
}

// SubscribeWishlist delivers userID's wishlist, newest first, now and after
// every change to it.
func (s *Store) SubscribeWishlist(ctx context.Context, userID int64, fn func([]model.WishlistItem)) (cancel func(), err error) {
	f := s.wishlistFeed(userID)
	err = f.Prime(func() ([]model.WishlistItem, error) { return s.Store.ListWishlistItems(ctx, userID) })
	if err != nil {
		return nil, err
	}
	return bind(ctx, f.Subscribe(fn)), nil
}

func bind(ctx context.Context, cancel func()) func() {
	stop := context.AfterFunc(ctx, cancel)
	return func() {
		stop()
		cancel()
	}
}

func (s *Store) wishlistFeed(userID int64) *live.Feed[[]model.WishlistItem] {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.wishlists[userID]
	if !ok {
		f = &live.Feed[[]model.WishlistItem]{}
		s.wishlists[userID] = f
	}
	return f
}

func (s *Store) existingWishlistFeed(userID int64) *live.Feed[[]model.WishlistItem] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wishlists[userID]
}

// refreshUsers republishes the user list if anyone has loaded it.
func (s *Store) refreshUsers(ctx context.Context) {
	_, err := s.users.Refresh(func() ([]model.User, error) { return s.Store.ListUsers(ctx) })
	if err != nil {
		s.log.Warn("refresh users stream", zap.Error(err))
	}
}

// refreshWishlist republishes userID's wishlist if anyone has loaded it.
func (s *Store) refreshWishlist(ctx context.Context, userID int64) {
	f := s.existingWishlistFeed(userID)
	if f == nil {
		return
	}
	_, err := f.Refresh(func() ([]model.WishlistItem, error) { return s.Store.ListWishlistItems(ctx, userID) })
	if err != nil {
		s.log.Warn("refresh wishlist stream", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// InsertUser inserts u and republishes the user list.
func (s *Store) InsertUser(ctx context.Context, u *model.User) error {
	if err := s.Store.InsertUser(ctx, u); err != nil {
		return err
	}
	s.refreshUsers(ctx)
	return nil
}

// UpdateUser updates u and republishes the user list.
func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	if err := s.Store.UpdateUser(ctx, u); err != nil {
		return err
	}
	s.refreshUsers(ctx)
	return nil
}

// UpsertUser upserts u and republishes the user list.
func (s *Store) UpsertUser(ctx context.Context, u *model.User) error {
	if err := s.Store.UpsertUser(ctx, u); err != nil {
		return err
	}
	s.refreshUsers(ctx)
	return nil
}

// DeleteUser removes u and republishes the user list and u's (now empty) wishlist.
func (s *Store) DeleteUser(ctx context.Context, u *model.User) error {
	return s.DeleteUserByID(ctx, u.ID)
}

// DeleteUserByID removes the user with id and republishes affected streams.
func (s *Store) DeleteUserByID(ctx context.Context, id int64) error {
	if err := s.Store.DeleteUserByID(ctx, id); err != nil {
		return err
	}
	s.refreshUsers(ctx)
	s.refreshWishlist(ctx, id)
	return nil
}

// InsertOrReplaceWishlistItem stores it and republishes the owner's wishlist.
func (s *Store) InsertOrReplaceWishlistItem(ctx context.Context, it *model.WishlistItem) error {
	if err := s.Store.InsertOrReplaceWishlistItem(ctx, it); err != nil {
		return err
	}
	s.refreshWishlist(ctx, it.UserID)
	return nil
}

// DeleteWishlistItem removes it and republishes the owner's wishlist.
func (s *Store) DeleteWishlistItem(ctx context.Context, it *model.WishlistItem) error {
	return s.DeleteWishlistItemByKey(ctx, it.UserID, it.ExternalItemID)
}

// DeleteWishlistItemByKey removes one row and republishes the owner's wishlist.
func (s *Store) DeleteWishlistItemByKey(ctx context.Context, userID int64, externalItemID string) error {
	if err := s.Store.DeleteWishlistItemByKey(ctx, userID, externalItemID); err != nil {
		return err
	}
	s.refreshWishlist(ctx, userID)
	return nil
}
