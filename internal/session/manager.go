// Package session tracks the current actor: an authenticated user, an
// anonymous guest, or nobody. Guest sessions never contact the remote auth
// provider.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"firebase.google.com/go/v4/auth"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RafaelMokgaha/Blouconnectapplication/internal/localstore"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/models"
)

// State is the session's authentication state.
type State int

const (
	Anonymous State = iota
	Guest
	Authenticated
)

// Authenticator is the subset of the remote auth provider the manager uses.
// Satisfied by *auth.Client.
type Authenticator interface {
	GetUserByEmail(ctx context.Context, email string) (*auth.UserRecord, error)
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
}

// UserWriter is the remote profile persistence the manager needs.
type UserWriter interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Set(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// RecoverableError classifies remote failures that degrade to local-only
// operation instead of failing the caller.
type RecoverableError func(error) bool

// Manager owns the current actor and its persistence.
type Manager struct {
	auth        Authenticator
	users       UserWriter
	store       localstore.Store
	log         zerolog.Logger
	recoverable RecoverableError

	mu        sync.Mutex
	current   *models.User
	listeners []func(*models.User)
}

// NewManager creates a session Manager. auth and users may be nil for a
// client running without remote credentials; only guest sessions are then
// possible.
func NewManager(authClient Authenticator, users UserWriter, store localstore.Store, recoverable RecoverableError, log zerolog.Logger) *Manager {
	if recoverable == nil {
		recoverable = func(error) bool { return false }
	}
	return &Manager{
		auth:        authClient,
		users:       users,
		store:       store,
		log:         log,
		recoverable: recoverable,
	}
}

// OnChange registers a callback invoked after every actor transition,
// including the transition to nil on logout.
func (m *Manager) OnChange(fn func(*models.User)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Current returns a copy of the active actor, or nil.
func (m *Manager) Current() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	u := *m.current
	return &u
}

// State reports the session state for the active actor.
func (m *Manager) State() State {
	u := m.Current()
	switch {
	case u == nil:
		return Anonymous
	case u.IsGuest():
		return Guest
	default:
		return Authenticated
	}
}

// Resume restores a persisted guest identity, if one exists. Called once at
// client start before any remote auth resolution.
func (m *Manager) Resume() {
	raw, ok := m.store.Get(localstore.KeyGuestUser)
	if !ok {
		return
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		m.log.Warn().Err(err).Msg("discarding corrupt guest identity")
		return
	}
	m.setCurrent(&user)
}

// GuestLogin starts an anonymous guest session with a namespaced random id.
func (m *Manager) GuestLogin(req models.GuestLoginRequest) (*models.User, error) {
	if err := validator.New().Struct(req); err != nil {
		return nil, err
	}

	id := models.GuestIDPrefix + uuid.NewString()
	avatar := req.Avatar
	if avatar == "" {
		avatar = defaultAvatar(id)
	}
	user := &models.User{
		ID:       id,
		FullName: req.FullName,
		Village:  req.Village,
		Avatar:   avatar,
		IsOnline: true,
	}
	if err := m.Login(context.Background(), user); err != nil {
		return nil, err
	}
	return m.Current(), nil
}

// SignUp creates a remote credential plus a full profile record and writes
// both immediately.
func (m *Manager) SignUp(ctx context.Context, req models.SignUpRequest) (*models.User, error) {
	if err := validator.New().Struct(req); err != nil {
		return nil, err
	}
	if m.auth == nil {
		return nil, fmt.Errorf("remote auth is not configured")
	}

	record, err := m.auth.CreateUser(ctx, (&auth.UserToCreate{}).
		Email(req.Email).
		Password(req.Password).
		DisplayName(req.FullName))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	avatar := req.Avatar
	if avatar == "" {
		avatar = defaultAvatar(record.UID)
	}
	user := &models.User{
		ID:       record.UID,
		FullName: req.FullName,
		Email:    req.Email,
		Village:  req.Village,
		DOB:      req.DOB,
		Avatar:   avatar,
		IsOnline: true,
	}
	if err := m.Login(ctx, user); err != nil {
		return nil, err
	}
	return m.Current(), nil
}

// SignIn resolves the credential for the email, then loads the profile
// document, degrading to the locally cached profile or a synthesized minimal
// one when the read is denied.
func (m *Manager) SignIn(ctx context.Context, email string) (*models.User, error) {
	if m.auth == nil {
		return nil, fmt.Errorf("remote auth is not configured")
	}
	record, err := m.auth.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("sign-in failed: %w", err)
	}

	user := m.loadProfile(ctx, record)
	m.setCurrent(user)
	return m.Current(), nil
}

func (m *Manager) loadProfile(ctx context.Context, record *auth.UserRecord) *models.User {
	if m.users != nil {
		user, err := m.users.Get(ctx, record.UID)
		if err == nil {
			m.cacheProfile(user)
			return user
		}
		if !m.recoverable(err) {
			m.log.Error().Err(err).Str("uid", record.UID).Msg("error fetching user profile")
		}
	}

	// Try the locally cached profile before synthesizing one, so the actor
	// is never stuck behind restrictive rules.
	if raw, ok := m.store.Get(localstore.UserKey(record.UID)); ok {
		var cached models.User
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return &cached
		}
	}

	name := record.DisplayName
	if name == "" {
		name = "Community Member"
	}
	avatar := record.PhotoURL
	if avatar == "" {
		avatar = defaultAvatar(record.UID)
	}
	return &models.User{
		ID:       record.UID,
		FullName: name,
		Email:    record.Email,
		Village:  "Unknown",
		Avatar:   avatar,
		IsOnline: true,
	}
}

// Login establishes the given user as the actor and persists the record:
// guests locally only, authenticated users remotely with a local mirror.
// The verification flag is always re-derived before committing.
func (m *Manager) Login(ctx context.Context, user *models.User) error {
	if user.FollowingIDs == nil {
		user.FollowingIDs = []string{}
	}
	user.RecomputeVerification()
	m.setCurrent(user)
	return m.Save(ctx, user)
}

// Save persists a user record without changing listeners' view of who the
// actor is beyond the record's fields. Callers mutating the active actor go
// through the reconciliation engine, which handles the snapshot fan-out.
func (m *Manager) Save(ctx context.Context, user *models.User) error {
	user.RecomputeVerification()
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	m.mu.Lock()
	if m.current != nil && m.current.ID == user.ID {
		u := *user
		m.current = &u
	}
	m.mu.Unlock()

	if user.IsGuest() {
		m.store.Set(localstore.KeyGuestUser, string(raw))
		return nil
	}

	if m.users != nil {
		if err := m.users.Set(ctx, user); err != nil {
			if !m.recoverable(err) {
				return fmt.Errorf("failed to save profile: %w", err)
			}
			m.log.Debug().Str("uid", user.ID).Msg("profile write denied, keeping local copy")
		}
	}
	m.store.Set(localstore.UserKey(user.ID), string(raw))
	return nil
}

// Logout clears the actor. Guest identities are removed from the device.
func (m *Manager) Logout(ctx context.Context) {
	m.store.Delete(localstore.KeyGuestUser)
	m.setCurrent(nil)
}

// DeleteAccount removes the actor permanently: guests lose only local state,
// authenticated users lose the remote profile record and credential.
func (m *Manager) DeleteAccount(ctx context.Context) error {
	user := m.Current()
	if user == nil {
		return nil
	}

	if user.IsGuest() {
		m.store.Delete(localstore.KeyGuestUser)
		m.setCurrent(nil)
		return nil
	}

	if m.users != nil {
		if err := m.users.Delete(ctx, user.ID); err != nil && !m.recoverable(err) {
			return fmt.Errorf("failed to delete profile: %w", err)
		}
	}
	if m.auth != nil {
		if err := m.auth.DeleteUser(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to delete credential: %w", err)
		}
	}
	m.store.Delete(localstore.UserKey(user.ID))
	m.setCurrent(nil)
	return nil
}

func (m *Manager) setCurrent(user *models.User) {
	m.mu.Lock()
	if user != nil {
		u := *user
		m.current = &u
	} else {
		m.current = nil
	}
	listeners := make([]func(*models.User), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(m.Current())
	}
}

func (m *Manager) cacheProfile(user *models.User) {
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	m.store.Set(localstore.UserKey(user.ID), string(raw))
}

func defaultAvatar(seed string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + seed
}
