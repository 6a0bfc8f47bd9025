// ABOUTME: Web UI package serving the login, chat and admin views
// ABOUTME: Provides session cookie auth, CSRF protection and route registration

package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/gapchat/gapchat/internal/account"
	"github.com/gapchat/gapchat/internal/history"
	"github.com/gapchat/gapchat/internal/news"
	"github.com/gapchat/gapchat/internal/session"
	"github.com/gapchat/gapchat/internal/theme"
)

const (
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "gapchat_session"

	// CSRFCookieName is the name of the CSRF token cookie.
	CSRFCookieName = "gapchat_csrf"

	// SessionDuration is how long session cookies last.
	SessionDuration = 7 * 24 * time.Hour
)

// csrfContextKey carries the CSRF token through the request context.
type contextKey string

const csrfContextKey contextKey = "csrf_token"

// ReplyGateway is the chat view's dependency on the AI gateway.
type ReplyGateway interface {
	// GetReply returns the model's reply or a fixed fallback string; it
	// never returns an error.
	GetReply(ctx context.Context, prompt, username string, messages []history.Message) string

	// ClearSession is called alongside history clearing.
	ClearSession(username string)
}

// Server handles all web routes.
type Server struct {
	accounts *account.Store
	news     *news.Store
	history  *history.Store
	themes   *theme.Store
	gateway  ReplyGateway
	authCtx  *session.Context
	tokens   *session.TokenCodec
	logger   *slog.Logger
}

// New creates a web server over the given stores and gateway.
func New(accounts *account.Store, newsStore *news.Store, historyStore *history.Store, themeStore *theme.Store, gateway ReplyGateway, authCtx *session.Context, tokens *session.TokenCodec) *Server {
	return &Server{
		accounts: accounts,
		news:     newsStore,
		history:  historyStore,
		themes:   themeStore,
		gateway:  gateway,
		authCtx:  authCtx,
		tokens:   tokens,
		logger:   slog.Default().With("component", "web"),
	}
}

// RegisterRoutes registers all routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Public routes (no auth required)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Role-dispatching root
	mux.HandleFunc("GET /{$}", s.handleRoot)

	// Authenticated routes
	mux.HandleFunc("POST /logout", s.requireAuth(s.handleLogout))
	mux.HandleFunc("GET /chat", s.requireAuth(s.handleChatPage))
	mux.HandleFunc("POST /chat/send", s.requireAuth(s.handleChatSend))
	mux.HandleFunc("POST /chat/clear", s.requireAuth(s.handleChatClear))

	// Admin routes
	mux.HandleFunc("GET /admin", s.requireAdmin(s.handleAdminPage))
	mux.HandleFunc("POST /admin/users/create", s.requireAdmin(s.handleUserCreate))
	mux.HandleFunc("POST /admin/users/{id}/delete", s.requireAdmin(s.handleUserDelete))
	mux.HandleFunc("POST /admin/users/{id}/role", s.requireAdmin(s.handleUserRole))
	mux.HandleFunc("POST /admin/news/create", s.requireAdmin(s.handleNewsCreate))
	mux.HandleFunc("POST /admin/news/{id}/delete", s.requireAdmin(s.handleNewsDelete))
	mux.HandleFunc("POST /admin/theme/save", s.requireAdmin(s.handleThemeSave))
	mux.HandleFunc("POST /admin/theme/reset", s.requireAdmin(s.handleThemeReset))

	s.logger.Info("web routes registered")
}

// handleHealth reports process liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// handleRoot dispatches to the view matching the current role: login form
// when logged out, admin dashboard for admins, chat for everyone else.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	user := s.userFromRequest(r)
	switch {
	case user == nil:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case user.Role == account.RoleAdmin:
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	default:
		http.Redirect(w, r, "/chat", http.StatusSeeOther)
	}
}

// userFromRequest resolves the authenticated user, or nil. The cookie only
// binds the browser to the session; the auth context holds the login-time
// snapshot that decides which view renders.
func (s *Server) userFromRequest(r *http.Request) *account.User {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil
	}

	userID, err := s.tokens.Verify(cookie.Value)
	if err != nil {
		return nil
	}

	current := s.authCtx.Current()
	if current == nil || current.ID != userID {
		return nil
	}
	return current
}

// requireAuth wraps a handler to require a logged-in user.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := s.userFromRequest(r)
		if user == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next(w, r.WithContext(session.WithUser(r.Context(), user)))
	}
}

// requireAdmin wraps a handler to require the ADMIN role.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		user := session.MustFromContext(r.Context())
		if user.Role != account.RoleAdmin {
			http.Redirect(w, r, "/chat", http.StatusSeeOther)
			return
		}
		next(w, r)
	})
}

// ensureCSRFToken generates a CSRF token if not present and adds it to context.
func (s *Server) ensureCSRFToken(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	cookie, err := r.Cookie(CSRFCookieName)
	if err == nil && cookie.Value != "" {
		ctx := context.WithValue(r.Context(), csrfContextKey, cookie.Value)
		return r.WithContext(ctx), cookie.Value
	}

	token, err := generateSecureToken(32)
	if err != nil {
		s.logger.Error("failed to generate CSRF token", "error", err)
		token = "" // Will fail validation, but won't crash
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	ctx := context.WithValue(r.Context(), csrfContextKey, token)
	return r.WithContext(ctx), token
}

// validateCSRF checks the CSRF token from the form against the cookie.
func (s *Server) validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	formToken := r.FormValue("csrf_token")
	return formToken != "" && formToken == cookie.Value
}

// setSessionCookie signs and sets the browser session cookie for a user.
func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, userID string) error {
	token, err := s.tokens.Generate(userID, SessionDuration)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(SessionDuration),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// clearSessionCookie removes the browser session cookie.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// generateSecureToken generates a cryptographically secure random token.
func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
