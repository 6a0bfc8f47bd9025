// ABOUTME: Process-wide auth context holding the current-user snapshot
// ABOUTME: Explicitly initialized from the account store and mutated by login/logout

package session

import (
	"context"
	"sync"

	"github.com/gapchat/gapchat/internal/account"
)

// Context holds the current-user state the view layer renders against.
// It is an explicit, injected object rather than a package global: New loads
// the persisted session once at startup, Login and Logout are the only
// mutations, and nothing here survives process exit except what the account
// store already persisted.
type Context struct {
	mu      sync.RWMutex
	current *account.User
}

// New creates the auth context, initialized from the account store's
// persisted session record.
func New(ctx context.Context, accounts *account.Store) (*Context, error) {
	current, err := accounts.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	return &Context{current: current}, nil
}

// Login records the given user as the current one. The value is the snapshot
// returned by the account store at login time; later role or password changes
// are not reflected until the next login.
func (c *Context) Login(u *account.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = u
}

// Logout clears the current user.
func (c *Context) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
}

// Current returns the current user snapshot, or nil when logged out.
func (c *Context) Current() *account.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// contextKey is a custom type for request-context keys to avoid collisions.
type contextKey string

const userContextKey contextKey = "session_user"

// WithUser returns a request context carrying the authenticated user.
func WithUser(ctx context.Context, u *account.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// FromContext returns the authenticated user from the request context.
func FromContext(ctx context.Context) (*account.User, bool) {
	u, ok := ctx.Value(userContextKey).(*account.User)
	return u, ok && u != nil
}

// MustFromContext returns the authenticated user or panics. Reaching the
// panic means a handler ran without the auth middleware, which is a
// programming error, not a runtime condition.
func MustFromContext(ctx context.Context) *account.User {
	u, ok := FromContext(ctx)
	if !ok {
		panic("session: MustFromContext called outside the auth middleware")
	}
	return u
}
