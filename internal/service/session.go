// Package service contains the session and search controllers that sit between
// the front-end, the observable store and the catalog client.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/danaom/internal/errs"
	"github.com/and161185/danaom/internal/metrics"
	"github.com/and161185/danaom/internal/model"
	"github.com/and161185/danaom/internal/repository"
)

// AdminEmail is the email that grants admin privileges.
const AdminEmail = "admin"

// ObservableStore is a repository.Store that also streams snapshots.
type ObservableStore interface {
	repository.Store
	SubscribeUsers(ctx context.Context, fn func([]model.User)) (cancel func(), err error)
	SubscribeWishlist(ctx context.Context, userID int64, fn func([]model.WishlistItem)) (cancel func(), err error)
}

// UpdateResult reports the outcome of a profile update.
type UpdateResult struct {
	Success bool
	Message string
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger.
func WithSessionLogger(l *zap.Logger) SessionOption { return func(s *Session) { s.log = l } }

// WithSessionMetrics records logins and toggles on m.
func WithSessionMetrics(m *metrics.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithClock overrides time.Now for wishlist timestamps.
func WithClock(now func() time.Time) SessionOption { return func(s *Session) { s.now = now } }

// Session owns login state, admin derivation, profile and admin user
// management, and wishlist membership for the current user.
//
// Store I/O runs without mu held: store writes publish synchronously into the
// subscription callbacks, which take mu themselves.
type Session struct {
	store   ObservableStore
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	ctx  context.Context // bounds store subscriptions
	stop context.CancelFunc

	// subMu serialises current-user transitions and the subscriptions they drive.
	subMu sync.Mutex

	mu         sync.Mutex
	loginState model.LoginState
	errMsg     string
	loading    bool
	current    *model.User
	sessionID  string
	isAdmin    bool

	wishUID    int64
	wishCancel func()
	wishlist   []model.WishlistItem
	membership map[string]bool

	screenUser *model.User

	adminCancel  func()
	adminUsers   []model.User
	adminLoading bool
	adminMsg     string
	selected     *model.User
}

// NewSession builds a logged-out Session over st.
func NewSession(st ObservableStore, opts ...SessionOption) *Session {
	ctx, stop := context.WithCancel(context.Background())
	s := &Session{
		store:      st,
		log:        zap.NewNop(),
		now:        time.Now,
		ctx:        ctx,
		stop:       stop,
		membership: map[string]bool{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Close ends all store subscriptions. The Session must not be used afterwards.
func (s *Session) Close() {
	s.stop()
	s.mu.Lock()
	wc, ac := s.wishCancel, s.adminCancel
	s.wishCancel, s.adminCancel = nil, nil
	s.mu.Unlock()
	if wc != nil {
		wc()
	}
	if ac != nil {
		ac()
	}
}

// Register validates u and inserts it. A duplicate (email, address) pair is
// silently ignored and yields ID 0.
func (s *Session) Register(ctx context.Context, u model.User) (int64, error) {
	if err := validateStruct(u); err != nil {
		s.setError("registration failed: " + err.Error())
		return 0, err
	}
	u.ID = 0
	if err := s.store.InsertUser(ctx, &u); err != nil {
		s.setError("registration failed: " + err.Error())
		s.log.Error("register user", zap.String("email", u.Email), zap.Error(err))
		return 0, fmt.Errorf("register: %w", err)
	}
	s.log.Info("user registered", zap.Int64("user_id", u.ID), zap.String("email", u.Email))
	return u.ID, nil
}

// Login runs the login state machine and returns the resulting state. A failed
// attempt leaves the current user untouched.
func (s *Session) Login(ctx context.Context, email, password string) model.LoginState {
	s.mu.Lock()
	s.loginState = model.LoginLoading
	s.errMsg = ""
	s.mu.Unlock()

	state, msg := model.LoginSuccess, ""
	u, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		state, msg = model.LoginErrorUserNotFound, "no user registered with this email"
	case err != nil:
		state, msg = model.LoginErrorUnknown, "login failed: "+err.Error()
		s.log.Error("login lookup", zap.String("email", email), zap.Error(err))
	case u.Name != password:
		state, msg = model.LoginErrorInvalidPassword, "password does not match"
	}

	if state == model.LoginSuccess {
		id, err := uuid.NewV4()
		if err != nil {
			state, msg = model.LoginErrorUnknown, "login failed: "+err.Error()
		} else {
			s.mu.Lock()
			s.sessionID = id.String()
			s.mu.Unlock()
			s.applyCurrentUser(u)
			s.log.Info("login", zap.String("session", id.String()), zap.Int64("user_id", u.ID))
		}
	}

	s.mu.Lock()
	s.loginState = state
	s.errMsg = msg
	s.mu.Unlock()
	s.metrics.IncLogin(state.String())
	return state
}

// Logout resets the session unconditionally.
func (s *Session) Logout() {
	s.mu.Lock()
	sid := s.sessionID
	s.sessionID = ""
	s.loginState = model.LoginIdle
	s.mu.Unlock()
	s.applyCurrentUser(nil)
	if sid != "" {
		s.log.Info("logout", zap.String("session", sid))
	}
}

// applyCurrentUser swaps the current user and re-derives everything keyed on
// it: the wishlist stream when the uid changes, and admin state.
func (s *Session) applyCurrentUser(u *model.User) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	var next *model.User
	var nextUID int64
	if u != nil {
		c := *u
		next, nextUID = &c, c.ID
	}

	s.mu.Lock()
	var prevUID int64
	if s.current != nil {
		prevUID = s.current.ID
	}
	s.current = next
	s.isAdmin = next != nil && next.Email == AdminEmail
	admin := s.isAdmin

	var stopWish, stopAdmin func()
	uidChanged := prevUID != nextUID || (nextUID != 0 && s.wishCancel == nil)
	if uidChanged {
		stopWish, s.wishCancel = s.wishCancel, nil
		s.wishUID = nextUID
		s.wishlist = nil
		s.membership = map[string]bool{}
	}
	if !admin {
		stopAdmin, s.adminCancel = s.adminCancel, nil
		s.adminUsers = nil
		s.selected = nil
	}
	s.mu.Unlock()

	if stopWish != nil {
		stopWish()
	}
	if stopAdmin != nil {
		stopAdmin()
	}
	if uidChanged && nextUID != 0 {
		s.subscribeWishlist(nextUID)
	}
	if admin {
		_ = s.loadAllUsersLocked()
	}
}

func (s *Session) subscribeWishlist(uid int64) {
	cancel, err := s.store.SubscribeWishlist(s.ctx, uid, func(items []model.WishlistItem) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.wishUID != uid {
			return
		}
		s.wishlist = items
		m := make(map[string]bool, len(items))
		for _, it := range items {
			m[it.ExternalItemID] = true
		}
		s.membership = m
	})
	if err != nil {
		s.setError("failed to load wishlist: " + err.Error())
		s.log.Error("subscribe wishlist", zap.Int64("user_id", uid), zap.Error(err))
		return
	}
	s.mu.Lock()
	if s.wishUID != uid {
		s.mu.Unlock()
		cancel()
		return
	}
	s.wishCancel = cancel
	s.mu.Unlock()
}

// FetchMembershipStatus replaces the membership map with the saved state of
// items. Logged-out sessions and store failures yield all-false.
func (s *Session) FetchMembershipStatus(ctx context.Context, items []model.CatalogItem) map[string]bool {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.Link != "" {
			ids = append(ids, it.Link)
		}
	}
	allFalse := func() map[string]bool {
		m := make(map[string]bool, len(ids))
		for _, id := range ids {
			m[id] = false
		}
		return m
	}

	s.mu.Lock()
	uid := s.uidLocked()
	if uid == 0 {
		s.membership = allFalse()
		out := copyMap(s.membership)
		s.mu.Unlock()
		return out
	}
	if len(ids) == 0 {
		out := copyMap(s.membership)
		s.mu.Unlock()
		return out
	}
	s.mu.Unlock()

	rows, err := s.store.GetWishlistItemsForIDs(ctx, uid, ids)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uidLocked() != uid {
		return copyMap(s.membership)
	}
	if err != nil {
		s.errMsg = "failed to load wishlist status: " + err.Error()
		s.log.Error("wishlist status", zap.Int64("user_id", uid), zap.Error(err))
		s.membership = allFalse()
		return copyMap(s.membership)
	}
	m := make(map[string]bool, len(rows))
	for _, r := range rows {
		m[r.ExternalItemID] = true
	}
	s.membership = m
	return copyMap(m)
}

// ToggleMembership adds item to the wishlist or removes it, depending on the
// current membership map, and reports the new state. The map changes only
// after the store write succeeds.
func (s *Session) ToggleMembership(ctx context.Context, item model.CatalogItem) (bool, error) {
	s.mu.Lock()
	uid := s.uidLocked()
	was := s.membership[item.Link]
	s.mu.Unlock()

	if uid == 0 {
		return false, errs.ErrUnauthorized
	}
	if item.Link == "" {
		return false, fmt.Errorf("toggle: empty item link: %w", errs.ErrInvalidInput)
	}

	var err error
	if was {
		err = s.store.DeleteWishlistItemByKey(ctx, uid, item.Link)
	} else {
		err = s.store.InsertOrReplaceWishlistItem(ctx, &model.WishlistItem{
			UserID:         uid,
			ExternalItemID: item.Link,
			Title:          optional(item.Title),
			ImageURL:       optional(item.Image),
			LowPrice:       optional(item.LowPrice),
			OriginalLink:   optional(item.OriginalLink),
			AddedAt:        s.now(),
		})
	}
	if err != nil {
		s.setError("wishlist update failed: " + err.Error())
		s.log.Error("toggle wishlist", zap.Int64("user_id", uid), zap.String("item", item.Link), zap.Error(err))
		return was, fmt.Errorf("toggle: %w", err)
	}

	s.mu.Lock()
	if s.uidLocked() == uid {
		if was {
			delete(s.membership, item.Link)
		} else {
			s.membership[item.Link] = true
		}
	}
	s.mu.Unlock()

	if was {
		s.metrics.IncToggle("remove")
	} else {
		s.metrics.IncToggle("add")
	}
	return !was, nil
}

// IsWishlisted reports the membership map entry for link.
func (s *Session) IsWishlisted(link string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.membership[link]
}

// LoadUserByID loads the user with the decimal id into the info screen.
func (s *Session) LoadUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.loadScreenUser(ctx, id, func(int64) string { return "user not found" })
}

// LoadUserForInfoScreen is LoadUserByID with an id-specific miss message.
func (s *Session) LoadUserForInfoScreen(ctx context.Context, id string) (*model.User, error) {
	return s.loadScreenUser(ctx, id, func(n int64) string { return fmt.Sprintf("no user found with id %d", n) })
}

func (s *Session) loadScreenUser(ctx context.Context, raw string, missMsg func(int64) string) (*model.User, error) {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.setScreenUser(nil, "invalid id format")
		return nil, fmt.Errorf("user id %q: %w", raw, errs.ErrInvalidInput)
	}
	u, err := s.store.GetUserByID(ctx, id)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		s.setScreenUser(nil, missMsg(id))
		return nil, err
	case err != nil:
		s.setScreenUser(nil, "failed to load user: "+err.Error())
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	s.setScreenUser(u, "")
	c := *u
	return &c, nil
}

func (s *Session) setScreenUser(u *model.User, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenUser = u
	s.errMsg = msg
}

// PrepareForMyInfoEdit points the info screen at the current user.
func (s *Session) PrepareForMyInfoEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenUser = cloneUser(s.current)
	s.errMsg = ""
}

// UpdateUserInformation writes u through to the store. If u is the current
// user, the session adopts the new values and re-derives admin state.
func (s *Session) UpdateUserInformation(ctx context.Context, u model.User) UpdateResult {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	err := validateStruct(u)
	if err == nil {
		err = s.store.UpdateUser(ctx, &u)
	}
	if err != nil {
		msg := "update failed: " + err.Error()
		s.setError(msg)
		s.log.Warn("update user", zap.Int64("user_id", u.ID), zap.Error(err))
		return UpdateResult{Message: msg}
	}

	s.mu.Lock()
	s.screenUser = cloneUser(&u)
	isCurrent := s.current != nil && s.current.ID == u.ID
	s.mu.Unlock()
	if isCurrent {
		s.applyCurrentUser(&u)
	}
	return UpdateResult{Success: true, Message: "profile updated"}
}

// LoadAllUsersForAdmin mirrors the live user list into the admin view.
// It is a no-op for non-admins and when already subscribed.
func (s *Session) LoadAllUsersForAdmin() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return s.loadAllUsersLocked()
}

// loadAllUsersLocked requires subMu.
func (s *Session) loadAllUsersLocked() error {
	s.mu.Lock()
	if !s.isAdmin {
		s.mu.Unlock()
		return errs.ErrForbidden
	}
	if s.adminCancel != nil {
		s.mu.Unlock()
		return nil
	}
	s.adminLoading = true
	s.adminMsg = ""
	s.mu.Unlock()

	cancel, err := s.store.SubscribeUsers(s.ctx, func(users []model.User) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.isAdmin {
			s.adminUsers = users
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminLoading = false
	if err != nil {
		s.adminMsg = "failed to load users: " + err.Error()
		s.log.Error("subscribe users", zap.Error(err))
		return err
	}
	s.adminCancel = cancel
	return nil
}

// SelectUserForAdmin sets (or with nil clears) the admin selection.
func (s *Session) SelectUserForAdmin(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = cloneUser(u)
}

// AdminAddOrUpdateUser inserts u, or overwrites the user with u.ID, keeping
// that user's wishlist.
func (s *Session) AdminAddOrUpdateUser(ctx context.Context, u model.User, isNew bool) error {
	if !s.IsAdmin() {
		return errs.ErrForbidden
	}
	s.setAdminBusy()
	err := validateStruct(u)
	if err == nil {
		if isNew {
			u.ID = 0
		}
		err = s.store.UpsertUser(ctx, &u)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminLoading = false
	if err != nil {
		s.adminMsg = "operation failed: " + err.Error()
		s.log.Warn("admin upsert user", zap.Int64("user_id", u.ID), zap.Error(err))
		return fmt.Errorf("admin upsert: %w", err)
	}
	if isNew {
		s.adminMsg = "user added"
	} else {
		s.adminMsg = "user updated"
	}
	s.selected = nil
	return nil
}

// AdminDeleteSelectedUser deletes the selected user and their wishlist.
func (s *Session) AdminDeleteSelectedUser(ctx context.Context) error {
	if !s.IsAdmin() {
		return errs.ErrForbidden
	}
	s.mu.Lock()
	target := cloneUser(s.selected)
	if target == nil {
		s.adminMsg = "select a user to delete first"
		s.mu.Unlock()
		return fmt.Errorf("admin delete: nothing selected: %w", errs.ErrInvalidInput)
	}
	s.mu.Unlock()

	s.setAdminBusy()
	err := s.store.DeleteUserByID(ctx, target.ID)

	s.mu.Lock()
	s.adminLoading = false
	if err != nil {
		s.adminMsg = "delete failed: " + err.Error()
		s.mu.Unlock()
		s.log.Warn("admin delete user", zap.Int64("user_id", target.ID), zap.Error(err))
		return fmt.Errorf("admin delete: %w", err)
	}
	s.adminMsg = fmt.Sprintf("user '%s' deleted", target.Email)
	s.selected = nil
	self := s.current != nil && s.current.ID == target.ID
	sid := s.sessionID
	s.mu.Unlock()
	s.log.Info("admin deleted user", zap.String("session", sid), zap.Int64("user_id", target.ID))

	// The account behind this session no longer exists.
	if self {
		s.Logout()
	}
	return nil
}

func (s *Session) setAdminBusy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminLoading = true
	s.adminMsg = ""
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = msg
}

func (s *Session) uidLocked() int64 {
	if s.current == nil {
		return 0
	}
	return s.current.ID
}

// LoginState returns the login state machine's current state.
func (s *Session) LoginState() model.LoginState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginState
}

// ErrorMessage returns the last user-facing error, or "".
func (s *Session) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Loading reports whether a profile load or update is running.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// CurrentUser returns a copy of the logged-in user, or nil.
func (s *Session) CurrentUser() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUser(s.current)
}

// CurrentUID returns the logged-in user's id in decimal, or "" when logged out.
func (s *Session) CurrentUID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return strconv.FormatInt(s.current.ID, 10)
}

// SessionID returns the correlation id minted at login, or "".
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// IsAdmin reports whether the current user is the admin account.
func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAdmin
}

// Wishlist returns the current user's wishlist, newest first.
func (s *Session) Wishlist() []model.WishlistItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.WishlistItem(nil), s.wishlist...)
}

// Membership returns a copy of the membership map.
func (s *Session) Membership() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.membership)
}

// UserForInfoScreen returns the user shown on the info screen, or nil.
func (s *Session) UserForInfoScreen() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUser(s.screenUser)
}

// AdminUsers returns the admin screen's user list, ordered by name.
func (s *Session) AdminUsers() []model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.User(nil), s.adminUsers...)
}

// SelectedUser returns a copy of the user selected on the admin screen, or nil.
func (s *Session) SelectedUser() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUser(s.selected)
}

// AdminMessage returns the last admin-screen status or error text.
func (s *Session) AdminMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adminMsg
}

// AdminLoading reports whether an admin write is running.
func (s *Session) AdminLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adminLoading
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func copyMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
