// ABOUTME: Account store with user CRUD and the current-session record
// ABOUTME: Persists the user list and session as JSON blobs in the kv store

package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gapchat/gapchat/internal/kv"
)

// ErrUsernameExists is returned when trying to create a user with an existing username.
var ErrUsernameExists = errors.New("username already exists")

// ReservedAdminUsername is the fixed account name whose role can never be
// changed through UpdateRole. It is created by Bootstrap on first run.
const ReservedAdminUsername = "admin"

// defaultAdminPassword is the bootstrap password for the reserved admin.
const defaultAdminPassword = "admin"

// Key-value namespace owned by this store.
const (
	usersKey       = "users"
	currentUserKey = "currentUser"
)

// Role is a user's access level.
type Role string

// Role values.
const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User represents an account. Password is stored as the plaintext string the
// user registered with; login is an exact case-sensitive comparison. This
// reproduces the upstream behavior faithfully and is insecure by construction.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Role     Role   `json:"role"`
}

// Store manages user accounts and the single current-session record.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
}

// NewStore creates an account store on top of the given key-value store.
func NewStore(kvStore kv.Store) *Store {
	return &Store{
		kv:     kvStore,
		logger: slog.Default().With("component", "account"),
	}
}

// loadUsers reads the full user list. An absent key means no users yet.
func (s *Store) loadUsers(ctx context.Context) ([]User, error) {
	data, err := s.kv.Get(ctx, usersKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading users: %w", err)
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}
	return users, nil
}

// saveUsers writes the full user list back. Every mutation is a full
// read-modify-write of the list; last writer wins.
func (s *Store) saveUsers(ctx context.Context, users []User) error {
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encoding users: %w", err)
	}
	if err := s.kv.Set(ctx, usersKey, data); err != nil {
		return fmt.Errorf("writing users: %w", err)
	}
	return nil
}

// Bootstrap creates the reserved admin account if no users exist.
// Idempotent: a no-op once any user is present.
func (s *Store) Bootstrap(ctx context.Context) error {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	if _, err := s.CreateUser(ctx, ReservedAdminUsername, defaultAdminPassword, RoleAdmin); err != nil {
		return fmt.Errorf("creating reserved admin: %w", err)
	}

	s.logger.Info("bootstrapped reserved admin account", "username", ReservedAdminUsername)
	return nil
}

// Login succeeds iff a stored record matches both username and password
// exactly (case-sensitive). On success the full record, password included,
// is persisted as the current session and returned. On mismatch it returns
// nil with no error: unknown username and wrong password are deliberately
// indistinguishable.
func (s *Store) Login(ctx context.Context, username, password string) (*User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		if u.Username == username && u.Password == password {
			data, err := json.Marshal(u)
			if err != nil {
				return nil, fmt.Errorf("encoding session: %w", err)
			}
			if err := s.kv.Set(ctx, currentUserKey, data); err != nil {
				return nil, fmt.Errorf("writing session: %w", err)
			}
			s.logger.Info("login successful", "username", username)
			return &u, nil
		}
	}

	return nil, nil
}

// Logout clears the current-session record.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.kv.Delete(ctx, currentUserKey); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// CurrentSession returns the persisted session record, or nil if absent.
// The record is the snapshot taken at login time: role or password changes
// made afterwards are not reflected until the next login.
func (s *Store) CurrentSession(ctx context.Context) (*User, error) {
	data, err := s.kv.Get(ctx, currentUserKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &u, nil
}

// ListUsers returns all users in storage order with the password field stripped.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]User, 0, len(users))
	for _, u := range users {
		u.Password = ""
		out = append(out, u)
	}
	return out, nil
}

// GetUser returns the stored record for id, or nil if absent.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, nil
}

// CreateUser appends a new user with a freshly generated id. Returns
// ErrUsernameExists if the username is already present (case-sensitive
// exact match). The returned copy has the password field stripped.
func (s *Store) CreateUser(ctx context.Context, username, password string, role Role) (*User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		if u.Username == username {
			return nil, ErrUsernameExists
		}
	}

	newUser := User{
		ID:       uuid.New().String(),
		Username: username,
		Password: password,
		Role:     role,
	}
	users = append(users, newUser)

	if err := s.saveUsers(ctx, users); err != nil {
		return nil, err
	}

	s.logger.Info("created user", "id", newUser.ID, "username", username, "role", role)

	created := newUser
	created.Password = ""
	return &created, nil
}

// DeleteUser removes the user with the given id and reports whether a
// record was actually removed. There is no guard against deleting the
// reserved admin by id here; only UpdateRole protects that account.
func (s *Store) DeleteUser(ctx context.Context, id string) (bool, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return false, err
	}

	kept := users[:0]
	for _, u := range users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	if len(kept) == len(users) {
		return false, nil
	}

	if err := s.saveUsers(ctx, kept); err != nil {
		return false, err
	}

	s.logger.Info("deleted user", "id", id)
	return true, nil
}

// UpdateRole sets the role of the user with the given id. It refuses to
// change the reserved admin's role, logging a warning and returning false.
// Returns false when the id is unknown.
func (s *Store) UpdateRole(ctx context.Context, id string, role Role) (bool, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return false, err
	}

	for i := range users {
		if users[i].ID != id {
			continue
		}

		if users[i].Username == ReservedAdminUsername {
			s.logger.Warn("attempted to change the reserved admin's role", "id", id)
			return false, nil
		}

		users[i].Role = role
		if err := s.saveUsers(ctx, users); err != nil {
			return false, err
		}

		s.logger.Info("updated user role", "id", id, "role", role)
		return true, nil
	}

	return false, nil
}
