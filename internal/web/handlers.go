// ABOUTME: HTTP handlers for the login, chat and admin views
// ABOUTME: Form-driven flows with redirect-after-post and inline Persian errors

package web

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/gapchat/gapchat/internal/account"
	"github.com/gapchat/gapchat/internal/history"
	"github.com/gapchat/gapchat/internal/session"
	"github.com/gapchat/gapchat/internal/theme"
)

// Form error and flash messages shown inline on the views.
const (
	msgLoginInvalid      = "نام کاربری یا رمز عبور نامعتبر است."
	msgUserFieldsMissing = "نام کاربری و رمز عبور الزامی است."
	msgUsernameTaken     = "این نام کاربری قبلا ثبت شده است."
	msgNewsFieldsMissing = "عنوان و محتوا الزامی است."

	roleNameAdmin = "ادمین"
	roleNameUser  = "کاربر"
)

// adminNewsLimit is how many articles the admin dashboard lists, compared
// to the short column on the login page.
const adminNewsLimit = 100

// handleLoginPage renders the login form with the latest news column.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.userFromRequest(r) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	r, token := s.ensureCSRFToken(w, r)
	s.renderLogin(w, r, token, "")
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, csrfToken, formError string) {
	articles, err := s.news.Latest(r.Context(), 0)
	if err != nil {
		s.logger.Error("failed to load news for login page", "error", err)
		articles = nil
	}

	items := make([]newsItem, 0, len(articles))
	for _, a := range articles {
		items = append(items, newsItem{
			ID:      a.ID,
			Title:   a.Title,
			Content: renderMarkdown(a.Content),
			Date:    formatDate(a.Date),
		})
	}

	s.render(w, "login", loginPage{
		basePage: basePage{
			Title:     "ورود",
			ThemeCSS:  themeCSS(s.themes.Get(r.Context())),
			CSRFToken: csrfToken,
		},
		Error: formError,
		News:  items,
	})
}

// handleLogin processes the login form. A failed credential check re-renders
// the form with a single message that does not distinguish a wrong password
// from an unknown username.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	user, err := s.accounts.Login(r.Context(), username, password)
	if err != nil {
		s.logger.Error("login failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		r, token := s.ensureCSRFToken(w, r)
		s.renderLogin(w, r, token, msgLoginInvalid)
		return
	}

	s.authCtx.Login(user)
	if err := s.setSessionCookie(w, r, user.ID); err != nil {
		s.logger.Error("failed to issue session cookie", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("user logged in", "username", user.Username, "role", user.Role)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout clears the persisted session and the browser cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !s.validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	user := session.MustFromContext(r.Context())
	if err := s.accounts.Logout(r.Context()); err != nil {
		s.logger.Error("failed to clear session", "error", err)
	}
	s.authCtx.Logout()
	clearSessionCookie(w)

	s.logger.Info("user logged out", "username", user.Username)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleChatPage renders the chat view with the user's stored history.
// Admins are sent to their dashboard instead.
func (s *Server) handleChatPage(w http.ResponseWriter, r *http.Request) {
	user := session.MustFromContext(r.Context())
	if user.Role == account.RoleAdmin {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}

	r, token := s.ensureCSRFToken(w, r)

	messages, err := s.history.Get(r.Context(), user.Username)
	if err != nil {
		s.logger.Error("failed to load chat history", "username", user.Username, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	rendered := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		rendered = append(rendered, newChatMessage(m))
	}

	s.render(w, "chat", chatPage{
		basePage: basePage{
			Title:     "چت با هوش مصنوعی",
			ThemeCSS:  themeCSS(s.themes.Get(r.Context())),
			CSRFToken: token,
		},
		Username: user.Username,
		Messages: rendered,
	})
}

// handleChatSend appends the user's message, asks the gateway for a reply
// and persists both turns before redirecting back to the chat.
func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	if !s.validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	user := session.MustFromContext(r.Context())

	text := strings.TrimSpace(r.FormValue("message"))
	if text == "" {
		http.Redirect(w, r, "/chat", http.StatusSeeOther)
		return
	}

	messages, err := s.history.Get(r.Context(), user.Username)
	if err != nil {
		s.logger.Error("failed to load chat history", "username", user.Username, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	messages = append(messages, history.Message{
		ID:     uuid.New().String(),
		Text:   text,
		Sender: history.SenderUser,
	})

	// The gateway never fails the request; a broken upstream comes back
	// as a fixed apology string that is stored like any other reply.
	reply := s.gateway.GetReply(r.Context(), text, user.Username, messages)

	messages = append(messages, history.Message{
		ID:     uuid.New().String(),
		Text:   reply,
		Sender: history.SenderAI,
	})

	if err := s.history.Save(r.Context(), user.Username, messages); err != nil {
		s.logger.Error("failed to save chat history", "username", user.Username, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

// handleChatClear wipes the user's stored history and notifies the gateway.
func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	if !s.validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	user := session.MustFromContext(r.Context())

	if err := s.history.Clear(r.Context(), user.Username); err != nil {
		s.logger.Error("failed to clear chat history", "username", user.Username, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.gateway.ClearSession(user.Username)

	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

// handleAdminPage renders the dashboard, translating success query
// parameters from redirect-after-post into flash messages.
func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	r, token := s.ensureCSRFToken(w, r)

	var userSuccess string
	q := r.URL.Query()
	if name := q.Get("created"); name != "" {
		userSuccess = fmt.Sprintf("کاربر «%s» با موفقیت ایجاد شد.", name)
	}
	if name := q.Get("rolechanged"); name != "" {
		roleName := roleNameUser
		if account.Role(q.Get("to")) == account.RoleAdmin {
			roleName = roleNameAdmin
		}
		userSuccess = fmt.Sprintf("نقش کاربر «%s» با موفقیت به «%s» تغییر کرد.", name, roleName)
	}

	s.renderAdmin(w, r, token, adminFlash{UserSuccess: userSuccess})
}

// adminFlash carries the inline messages for one admin page render.
type adminFlash struct {
	UserError   string
	UserSuccess string
	NewsError   string
}

func (s *Server) renderAdmin(w http.ResponseWriter, r *http.Request, csrfToken string, flash adminFlash) {
	user := session.MustFromContext(r.Context())

	users, err := s.accounts.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	rows := make([]adminUser, 0, len(users))
	for _, u := range users {
		toggleTo := account.RoleAdmin
		if u.Role == account.RoleAdmin {
			toggleTo = account.RoleUser
		}
		rows = append(rows, adminUser{
			ID:         u.ID,
			Username:   u.Username,
			Role:       u.Role,
			IsReserved: u.Username == account.ReservedAdminUsername,
			ToggleTo:   toggleTo,
		})
	}

	articles, err := s.news.Latest(r.Context(), adminNewsLimit)
	if err != nil {
		s.logger.Error("failed to list news", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	items := make([]newsItem, 0, len(articles))
	for _, a := range articles {
		items = append(items, newsItem{
			ID:      a.ID,
			Title:   a.Title,
			Content: renderMarkdown(a.Content),
			Date:    formatDate(a.Date),
		})
	}

	s.render(w, "admin", adminPage{
		basePage: basePage{
			Title:     "داشبورد ادمین",
			ThemeCSS:  themeCSS(s.themes.Get(r.Context())),
			CSRFToken: csrfToken,
		},
		Username:    user.Username,
		Users:       rows,
		News:        items,
		Theme:       s.themes.Get(r.Context()),
		Presets:     theme.Presets(),
		UserError:   flash.UserError,
		UserSuccess: flash.UserSuccess,
		NewsError:   flash.NewsError,
	})
}

// handleUserCreate creates a regular user from the admin form.
func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	if !s.validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	if username == "" || password == "" {
		r, token := s.ensureCSRFToken(w, r)
		s.renderAdmin(w, r, token, adminFlash{UserError: msgUserFieldsMissing})
		return
	}

	_, err := s.accounts.CreateUser(r.Context(), username, password, account.RoleUser)
	if errors.Is(err, account.ErrUsernameExists) {
		r, token := s.ensureCSRFToken(w, r)
		s.renderAdmin(w, r, token, adminFlash{UserError: msgUsernameTaken})
		return
	}
	if err != nil {
		s.logger.Error("failed to create user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin?created="+url.QueryEscape(username), http.StatusSeeOther)
}

// handleUserDelete removes a user by id. A missing id is not an error, the
// dashboard just re-renders without the row.
func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	if !s.validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	if _, err := s.accounts.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		s.logger.Error("failed to delete user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// handleUserRole switches a user between the USER and ADMIN roles.
func (s *Server) handleUserRole(w http.ResponseWriter, r *http.Request) {
	if !s.validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	id := r.PathValue("id")
	role := account.Role(r.FormValue("role"))
	if role != account.RoleUser && role != account.RoleAdmin {
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}

	target, err := s.accounts.GetUser(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to look up user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	changed, err := s.accounts.UpdateRole(r.Context(), id, role)
	if err != nil {
		s.logger.Error("failed to update role", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if changed && target != nil {
		params := url.Values{"rolechanged": {target.Username}, "to": {string(role)}}
		http.Redirect(w, r, "/admin?"+params.Encode(), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// handleNewsCreate publishes an article from the admin form.
func (s *Server) handleNewsCreate(w http.ResponseWriter, r *http.Request) {
	if !s.validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	title := r.FormValue("title")
	content := r.FormValue("content")
	if title == "" || content == "" {
		r, token := s.ensureCSRFToken(w, r)
		s.renderAdmin(w, r, token, adminFlash{NewsError: msgNewsFieldsMissing})
		return
	}

	if _, err := s.news.Add(r.Context(), title, content); err != nil {
		s.logger.Error("failed to add news", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// handleNewsDelete removes an article by id.
func (s *Server) handleNewsDelete(w http.ResponseWriter, r *http.Request) {
	if !s.validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	if _, err := s.news.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.logger.Error("failed to delete news", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// handleThemeSave stores a theme, either a named preset or the seven color
// fields from the custom form.
func (s *Server) handleThemeSave(w http.ResponseWriter, r *http.Request) {
	if !s.validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	var t theme.Theme
	if presetID := r.FormValue("preset"); presetID != "" {
		preset, ok := theme.PresetByID(presetID)
		if !ok {
			http.Error(w, "unknown preset", http.StatusBadRequest)
			return
		}
		t = preset.Theme
	} else {
		t = theme.Theme{
			Primary:        r.FormValue("primary"),
			PrimaryDark:    r.FormValue("primaryDark"),
			PrimaryLight:   r.FormValue("primaryLight"),
			TextStrong:     r.FormValue("textStrong"),
			TextMuted:      r.FormValue("textMuted"),
			BgGradientFrom: r.FormValue("bgGradientFrom"),
			BgGradientTo:   r.FormValue("bgGradientTo"),
		}
	}

	if err := s.themes.Save(r.Context(), t); err != nil {
		s.logger.Error("failed to save theme", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// handleThemeReset restores the default palette.
func (s *Server) handleThemeReset(w http.ResponseWriter, r *http.Request) {
	if !s.validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	if _, err := s.themes.Reset(r.Context()); err != nil {
		s.logger.Error("failed to reset theme", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// themeCSS adapts the theme package's CSS renderer to the template type.
func themeCSS(t theme.Theme) template.CSS {
	return template.CSS(theme.CSS(t))
}
