// Package memory is an in-process implementation of repository.Store with the
// same constraints as the SQL backends. Data lives only as long as the process.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/and161185/danaom/internal/errs"
	"github.com/and161185/danaom/internal/model"
)

type wishKey struct {
	userID int64
	itemID string
}

// Repo implements repository.Store in memory.
type Repo struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]model.User
	wishes map[wishKey]model.WishlistItem
}

// New returns an empty repository.
func New() *Repo {
	return &Repo{users: map[int64]model.User{}, wishes: map[wishKey]model.WishlistItem{}}
}

// Close is a no-op.
func (r *Repo) Close() error { return nil }

// conflicts mirrors a SQL unique index on (email, address): NULL addresses never collide.
func (r *Repo) conflicts(u *model.User) bool {
	if u.Address == nil {
		return false
	}
	for id, o := range r.users {
		if id != u.ID && o.Email == u.Email && o.Address != nil && *o.Address == *u.Address {
			return true
		}
	}
	return false
}

// InsertUser stores a copy of u under a fresh ID unless (email, address) is taken.
func (r *Repo) InsertUser(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := *u
	row.ID = 0
	if r.conflicts(&row) {
		return nil
	}
	r.nextID++
	row.ID = r.nextID
	r.users[row.ID] = row
	u.ID = row.ID
	return nil
}

// GetUserByEmail returns the lowest-ID user with email.
func (r *Repo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *model.User
	for _, u := range r.users {
		if u.Email == email && (found == nil || u.ID < found.ID) {
			c := u
			found = &c
		}
	}
	if found == nil {
		return nil, errs.ErrNotFound
	}
	return found, nil
}

// GetUserByID returns a copy of the user with id.
func (r *Repo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

// LastUser returns the user with the highest ID.
func (r *Repo) LastUser(_ context.Context) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *model.User
	for _, u := range r.users {
		if found == nil || u.ID > found.ID {
			c := u
			found = &c
		}
	}
	if found == nil {
		return nil, errs.ErrNotFound
	}
	return found, nil
}

// ListUsers returns all users ordered by name, then ID.
func (r *Repo) ListUsers(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateUser replaces the user with u.ID; unknown IDs are ignored.
func (r *Repo) UpdateUser(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return nil
	}
	if r.conflicts(u) {
		return errs.ErrAlreadyExists
	}
	r.users[u.ID] = *u
	return nil
}

// UpsertUser inserts u (assigning an ID when zero) or replaces the row with u.ID.
func (r *Repo) UpsertUser(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(u) {
		return errs.ErrAlreadyExists
	}
	if u.ID == 0 {
		r.nextID++
		u.ID = r.nextID
	} else if u.ID > r.nextID {
		r.nextID = u.ID
	}
	r.users[u.ID] = *u
	return nil
}

// DeleteUser removes u and its wishlist.
func (r *Repo) DeleteUser(ctx context.Context, u *model.User) error {
	return r.DeleteUserByID(ctx, u.ID)
}

// DeleteUserByID removes the user with id and its wishlist.
func (r *Repo) DeleteUserByID(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	for k := range r.wishes {
		if k.userID == id {
			delete(r.wishes, k)
		}
	}
	return nil
}

// InsertOrReplaceWishlistItem stores a copy of it; the owner must exist.
func (r *Repo) InsertOrReplaceWishlistItem(_ context.Context, it *model.WishlistItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[it.UserID]; !ok {
		return errs.ErrNotFound
	}
	r.wishes[wishKey{it.UserID, it.ExternalItemID}] = *it
	return nil
}

// DeleteWishlistItem removes the row keyed by it.
func (r *Repo) DeleteWishlistItem(ctx context.Context, it *model.WishlistItem) error {
	return r.DeleteWishlistItemByKey(ctx, it.UserID, it.ExternalItemID)
}

// DeleteWishlistItemByKey removes one row if present.
func (r *Repo) DeleteWishlistItemByKey(_ context.Context, userID int64, externalItemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.wishes, wishKey{userID, externalItemID})
	return nil
}

// ListWishlistItems returns the user's rows, newest first.
func (r *Repo) ListWishlistItems(_ context.Context, userID int64) ([]model.WishlistItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []model.WishlistItem{}
	for k, it := range r.wishes {
		if k.userID == userID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.After(out[j].AddedAt)
		}
		return out[i].ExternalItemID < out[j].ExternalItemID
	})
	return out, nil
}

// GetWishlistItem returns a single row or errs.ErrNotFound.
func (r *Repo) GetWishlistItem(_ context.Context, userID int64, externalItemID string) (*model.WishlistItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.wishes[wishKey{userID, externalItemID}]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &it, nil
}

// GetWishlistItemsForIDs returns the saved rows among ids, in ids order.
func (r *Repo) GetWishlistItemsForIDs(_ context.Context, userID int64, ids []string) ([]model.WishlistItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []model.WishlistItem{}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if it, ok := r.wishes[wishKey{userID, id}]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}
