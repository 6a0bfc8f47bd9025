// ABOUTME: HTTP-level tests for the web UI
// ABOUTME: Covers auth flows, role gating, chat round trips and admin forms

package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gapchat/gapchat/internal/account"
	"github.com/gapchat/gapchat/internal/history"
	"github.com/gapchat/gapchat/internal/kv"
	"github.com/gapchat/gapchat/internal/news"
	"github.com/gapchat/gapchat/internal/session"
	"github.com/gapchat/gapchat/internal/theme"
)

// stubGateway is a ReplyGateway with a canned reply.
type stubGateway struct {
	reply   string
	cleared []string
}

func (g *stubGateway) GetReply(ctx context.Context, prompt, username string, messages []history.Message) string {
	return g.reply
}

func (g *stubGateway) ClearSession(username string) {
	g.cleared = append(g.cleared, username)
}

// testEnv bundles the server under test with its backing stores.
type testEnv struct {
	ts       *httptest.Server
	accounts *account.Store
	news     *news.Store
	history  *history.Store
	themes   *theme.Store
	gateway  *stubGateway
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	kvStore := kv.NewMemoryStore()
	accounts := account.NewStore(kvStore)
	require.NoError(t, accounts.Bootstrap(ctx))

	newsStore := news.NewStore(kvStore)
	historyStore := history.NewStore(kvStore)
	themeStore := theme.NewStore(kvStore)
	gateway := &stubGateway{reply: "پاسخ آزمایشی"}

	authCtx, err := session.New(ctx, accounts)
	require.NoError(t, err)
	tokens := session.NewTokenCodec([]byte("test-secret-at-least-32-bytes-long"))

	srv := New(accounts, newsStore, historyStore, themeStore, gateway, authCtx, tokens)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:       ts,
		accounts: accounts,
		news:     newsStore,
		history:  historyStore,
		themes:   themeStore,
		gateway:  gateway,
	}
}

// newClient returns a cookie-keeping client that follows redirects.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

// noRedirect makes the client stop at the first response so tests can
// assert on Location headers.
func noRedirect(c *http.Client) *http.Client {
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// csrfToken reads the double-submit token from the client's cookie jar.
func csrfToken(t *testing.T, env *testEnv, client *http.Client) string {
	t.Helper()
	u, err := url.Parse(env.ts.URL)
	require.NoError(t, err)
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == CSRFCookieName {
			return c.Value
		}
	}
	t.Fatal("no CSRF cookie in jar")
	return ""
}

// getBody fetches a page and returns its body as a string.
func getBody(t *testing.T, env *testEnv, client *http.Client, path string) string {
	t.Helper()
	resp, err := client.Get(env.ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// postForm submits a form with the CSRF token filled in and returns the
// final response body after redirects.
func postForm(t *testing.T, env *testEnv, client *http.Client, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	form.Set("csrf_token", csrfToken(t, env, client))
	resp, err := client.PostForm(env.ts.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

// login drives the full form flow: GET for the CSRF cookie, then POST.
func login(t *testing.T, env *testEnv, client *http.Client, username, password string) string {
	t.Helper()
	getBody(t, env, client, "/login")
	_, body := postForm(t, env, client, "/login", url.Values{
		"username": {username},
		"password": {password},
	})
	return body
}

func TestHealthz(t *testing.T) {
	env := setupTestServer(t)

	body := getBody(t, env, newClient(t), "/healthz")
	assert.Equal(t, "ok", body)
}

func TestRoot_LoggedOutRedirectsToLogin(t *testing.T) {
	env := setupTestServer(t)
	client := noRedirect(newClient(t))

	resp, err := client.Get(env.ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestLoginPage_ShowsNewsColumn(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.news.Add(ctx, "افتتاح سامانه", "سامانه گفتگو راه‌اندازی شد")
	require.NoError(t, err)

	body := getBody(t, env, newClient(t), "/login")
	assert.Contains(t, body, "خوش آمدید")
	assert.Contains(t, body, "افتتاح سامانه")
	assert.NotContains(t, body, "در حال حاضر خبری موجود نیست.")
}

func TestLoginPage_NoNewsPlaceholder(t *testing.T) {
	env := setupTestServer(t)

	body := getBody(t, env, newClient(t), "/login")
	assert.Contains(t, body, "در حال حاضر خبری موجود نیست.")
}

func TestLogin_AdminLandsOnDashboard(t *testing.T) {
	env := setupTestServer(t)
	client := newClient(t)

	body := login(t, env, client, "admin", "admin")
	assert.Contains(t, body, "داشبورد ادمین")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := setupTestServer(t)
	client := newClient(t)

	body := login(t, env, client, "admin", "wrong")
	assert.Contains(t, body, "نام کاربری یا رمز عبور نامعتبر است.")

	body = login(t, env, client, "nobody", "whatever")
	assert.Contains(t, body, "نام کاربری یا رمز عبور نامعتبر است.")
}

func TestLogin_MissingCSRFRejected(t *testing.T) {
	env := setupTestServer(t)
	client := newClient(t)

	resp, err := client.PostForm(env.ts.URL+"/login", url.Values{
		"username": {"admin"},
		"password": {"admin"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	env := setupTestServer(t)
	client := newClient(t)
	login(t, env, client, "admin", "admin")

	_, body := postForm(t, env, client, "/logout", url.Values{})
	assert.Contains(t, body, "خوش آمدید") // back on the login page

	// Persisted session is gone too
	current, err := env.accounts.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestChat_UserSeesChatView(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.accounts.CreateUser(ctx, "ali", "secret", account.RoleUser)
	require.NoError(t, err)

	client := newClient(t)
	body := login(t, env, client, "ali", "secret")

	assert.Contains(t, body, "چت با هوش مصنوعی")
	assert.Contains(t, body, "خوش آمدید، ali!")
}

func TestChat_AdminRedirectedToDashboard(t *testing.T) {
	env := setupTestServer(t)
	client := newClient(t)
	login(t, env, client, "admin", "admin")

	body := getBody(t, env, client, "/chat")
	assert.Contains(t, body, "داشبورد ادمین")
}

func TestChat_SendPersistsBothTurns(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.accounts.CreateUser(ctx, "ali", "secret", account.RoleUser)
	require.NoError(t, err)

	client := newClient(t)
	login(t, env, client, "ali", "secret")

	_, body := postForm(t, env, client, "/chat/send", url.Values{
		"message": {"سلام دنیا"},
	})
	assert.Contains(t, body, "سلام دنیا")
	assert.Contains(t, body, "پاسخ آزمایشی")

	messages, err := env.history.Get(ctx, "ali")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, history.SenderUser, messages[0].Sender)
	assert.Equal(t, "سلام دنیا", messages[0].Text)
	assert.Equal(t, history.SenderAI, messages[1].Sender)
	assert.Equal(t, "پاسخ آزمایشی", messages[1].Text)
}

func TestChat_EmptyMessageIgnored(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.accounts.CreateUser(ctx, "ali", "secret", account.RoleUser)
	require.NoError(t, err)

	client := newClient(t)
	login(t, env, client, "ali", "secret")

	postForm(t, env, client, "/chat/send", url.Values{"message": {"   "}})

	messages, err := env.history.Get(ctx, "ali")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestChat_RepliesRenderMarkdown(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	env.gateway.reply = "این **مهم** است"

	_, err := env.accounts.CreateUser(ctx, "ali", "secret", account.RoleUser)
	require.NoError(t, err)

	client := newClient(t)
	login(t, env, client, "ali", "secret")

	_, body := postForm(t, env, client, "/chat/send", url.Values{
		"message": {"سوال"},
	})
	assert.Contains(t, body, "<strong>مهم</strong>")
}

func TestChat_Clear(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.accounts.CreateUser(ctx, "ali", "secret", account.RoleUser)
	require.NoError(t, err)

	client := newClient(t)
	login(t, env, client, "ali", "secret")
	postForm(t, env, client, "/chat/send", url.Values{"message": {"سلام"}})

	postForm(t, env, client, "/chat/clear", url.Values{})

	messages, err := env.history.Get(ctx, "ali")
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Equal(t, []string{"ali"}, env.gateway.cleared)
}

func TestAdmin_RegularUserRedirectedToChat(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.accounts.CreateUser(ctx, "ali", "secret", account.RoleUser)
	require.NoError(t, err)

	client := newClient(t)
	login(t, env, client, "ali", "secret")

	noRedirect(client)
	resp, err := client.Get(env.ts.URL + "/admin")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/chat", resp.Header.Get("Location"))
}

func TestAdmin_CreateUser(t *testing.T) {
	env := setupTestServer(t)
	client := newClient(t)
	login(t, env, client, "admin", "admin")

	_, body := postForm(t, env, client, "/admin/users/create", url.Values{
		"username": {"sara"},
		"password": {"pw"},
	})
	assert.Contains(t, body, "کاربر «sara» با موفقیت ایجاد شد.")

	users, err := env.accounts.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "sara", users[1].Username)
	assert.Equal(t, account.RoleUser, users[1].Role)
}

func TestAdmin_CreateUser_MissingFields(t *testing.T) {
	env := setupTestServer(t)
	client := newClient(t)
	login(t, env, client, "admin", "admin")

	_, body := postForm(t, env, client, "/admin/users/create", url.Values{
		"username": {"sara"},
	})
	assert.Contains(t, body, "نام کاربری و رمز عبور الزامی است.")
}

func TestAdmin_CreateUser_Duplicate(t *testing.T) {
	env := setupTestServer(t)
	client := newClient(t)
	login(t, env, client, "admin", "admin")

	postForm(t, env, client, "/admin/users/create", url.Values{
		"username": {"sara"}, "password": {"pw"},
	})
	_, body := postForm(t, env, client, "/admin/users/create", url.Values{
		"username": {"sara"}, "password": {"other"},
	})
	assert.Contains(t, body, "این نام کاربری قبلا ثبت شده است.")
}

func TestAdmin_DeleteUser(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	created, err := env.accounts.CreateUser(ctx, "sara", "pw", account.RoleUser)
	require.NoError(t, err)

	client := newClient(t)
	login(t, env, client, "admin", "admin")

	_, body := postForm(t, env, client, "/admin/users/"+created.ID+"/delete", url.Values{})
	assert.NotContains(t, body, "sara")

	users, err := env.accounts.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestAdmin_ToggleRole(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	created, err := env.accounts.CreateUser(ctx, "sara", "pw", account.RoleUser)
	require.NoError(t, err)

	client := newClient(t)
	login(t, env, client, "admin", "admin")

	_, body := postForm(t, env, client, "/admin/users/"+created.ID+"/role", url.Values{
		"role": {"ADMIN"},
	})
	assert.Contains(t, body, "نقش کاربر «sara» با موفقیت به «ادمین» تغییر کرد.")

	updated, err := env.accounts.GetUser(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, account.RoleAdmin, updated.Role)
}

func TestAdmin_ToggleRole_InvalidRole(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	created, err := env.accounts.CreateUser(ctx, "sara", "pw", account.RoleUser)
	require.NoError(t, err)

	client := newClient(t)
	login(t, env, client, "admin", "admin")

	resp, _ := postForm(t, env, client, "/admin/users/"+created.ID+"/role", url.Values{
		"role": {"SUPERUSER"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdmin_NewsCreateAndDelete(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	client := newClient(t)
	login(t, env, client, "admin", "admin")

	_, body := postForm(t, env, client, "/admin/news/create", url.Values{
		"title": {"خبر مهم"}, "content": {"جزئیات خبر"},
	})
	assert.Contains(t, body, "خبر مهم")

	articles, err := env.news.Latest(ctx, 0)
	require.NoError(t, err)
	require.Len(t, articles, 1)

	_, body = postForm(t, env, client, "/admin/news/"+articles[0].ID+"/delete", url.Values{})
	assert.NotContains(t, body, "خبر مهم")

	articles, err = env.news.Latest(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestAdmin_NewsCreate_MissingFields(t *testing.T) {
	env := setupTestServer(t)
	client := newClient(t)
	login(t, env, client, "admin", "admin")

	_, body := postForm(t, env, client, "/admin/news/create", url.Values{
		"title": {"خبر بدون متن"},
	})
	assert.Contains(t, body, "عنوان و محتوا الزامی است.")
}

func TestAdmin_ThemePresetSaveAndReset(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	client := newClient(t)
	login(t, env, client, "admin", "admin")

	preset, ok := theme.PresetByID("emerald")
	require.True(t, ok)

	postForm(t, env, client, "/admin/theme/save", url.Values{
		"preset": {"emerald"},
	})
	assert.Equal(t, preset.Theme, env.themes.Get(ctx))

	postForm(t, env, client, "/admin/theme/reset", url.Values{})
	assert.Equal(t, theme.Default(), env.themes.Get(ctx))
}

func TestAdmin_ThemeCustomSave(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	client := newClient(t)
	login(t, env, client, "admin", "admin")

	postForm(t, env, client, "/admin/theme/save", url.Values{
		"primary":        {"#111111"},
		"primaryDark":    {"#222222"},
		"primaryLight":   {"#333333"},
		"textStrong":     {"#444444"},
		"textMuted":      {"#555555"},
		"bgGradientFrom": {"#666666"},
		"bgGradientTo":   {"#777777"},
	})

	got := env.themes.Get(ctx)
	assert.Equal(t, "#111111", got.Primary)
	assert.Equal(t, "#777777", got.BgGradientTo)
}

func TestAdmin_ReservedAdminHasNoActionButtons(t *testing.T) {
	env := setupTestServer(t)
	client := newClient(t)
	body := login(t, env, client, "admin", "admin")

	// The bootstrap admin row renders without role or delete forms.
	assert.NotContains(t, body, "/admin/users/"+adminID(t, env)+"/delete")
}

func adminID(t *testing.T, env *testEnv) string {
	t.Helper()
	users, err := env.accounts.ListUsers(context.Background())
	require.NoError(t, err)
	for _, u := range users {
		if u.Username == account.ReservedAdminUsername {
			return u.ID
		}
	}
	t.Fatal("bootstrap admin not found")
	return ""
}

func TestStaleSessionKeepsOldView(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	created, err := env.accounts.CreateUser(ctx, "ali", "secret", account.RoleUser)
	require.NoError(t, err)

	client := newClient(t)
	body := login(t, env, client, "ali", "secret")
	assert.Contains(t, body, "چت با هوش مصنوعی")

	// Promote out-of-band: the in-memory snapshot still says USER, so the
	// dashboard stays off-limits until a fresh login.
	changed, err := env.accounts.UpdateRole(ctx, created.ID, account.RoleAdmin)
	require.NoError(t, err)
	require.True(t, changed)

	noRedirect(client)
	resp, err := client.Get(env.ts.URL + "/admin")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "/chat", resp.Header.Get("Location"))
}

func TestSessionCookieAloneIsNotEnough(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.accounts.CreateUser(ctx, "ali", "secret", account.RoleUser)
	require.NoError(t, err)

	client := newClient(t)
	login(t, env, client, "ali", "secret")

	// A second login replaces the single active session; the first
	// browser's cookie no longer matches it.
	other := newClient(t)
	login(t, env, other, "admin", "admin")

	noRedirect(client)
	resp, err := client.Get(env.ts.URL + "/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestPostWithoutLoginRedirects(t *testing.T) {
	env := setupTestServer(t)
	client := noRedirect(newClient(t))

	resp, err := client.PostForm(env.ts.URL+"/chat/send", url.Values{
		"message": {"بدون ورود"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestRenderMarkdown_EscapesRawHTML(t *testing.T) {
	out := string(renderMarkdown("<script>alert(1)</script>"))
	assert.NotContains(t, out, "<script>")
	assert.True(t, strings.Contains(out, "&lt;script&gt;") || !strings.Contains(out, "script"))
}
