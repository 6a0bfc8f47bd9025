// ABOUTME: Embedded HTML templates and view data for the web UI
// ABOUTME: Renders pages with theme CSS injection and markdown-formatted content

package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/yuin/goldmark"

	"github.com/gapchat/gapchat/internal/account"
	"github.com/gapchat/gapchat/internal/history"
	"github.com/gapchat/gapchat/internal/theme"
)

//go:embed templates/*.html
var templateFS embed.FS

// templates maps page names to their parsed template sets. Each page is
// parsed together with the base layout.
var templates = map[string]*template.Template{}

func init() {
	for _, page := range []string{"login", "chat", "admin"} {
		templates[page] = template.Must(template.ParseFS(templateFS,
			"templates/base.html",
			fmt.Sprintf("templates/%s.html", page)))
	}
}

// markdown renders chat replies and news bodies. Raw HTML in the source
// text stays escaped, which is what keeps model output safe to inline.
var markdown = goldmark.New()

// renderMarkdown converts markdown text to HTML for template injection.
func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

// basePage carries the fields every page needs.
type basePage struct {
	Title     string
	ThemeCSS  template.CSS
	CSRFToken string
}

// newsItem is one rendered news article.
type newsItem struct {
	ID      string
	Title   string
	Content template.HTML
	Date    string
}

// loginPage is the data for the login view.
type loginPage struct {
	basePage
	Error string
	News  []newsItem
}

// chatMessage is one rendered chat bubble.
type chatMessage struct {
	ID     string
	Text   string        // user messages, escaped by the template
	HTML   template.HTML // AI messages, markdown-rendered
	IsUser bool
}

// chatPage is the data for the chat view.
type chatPage struct {
	basePage
	Username string
	Messages []chatMessage
}

// adminUser is one row in the user management table.
type adminUser struct {
	ID         string
	Username   string
	Role       account.Role
	IsReserved bool
	ToggleTo   account.Role
}

// adminPage is the data for the admin dashboard.
type adminPage struct {
	basePage
	Username    string
	Users       []adminUser
	News        []newsItem
	Theme       theme.Theme
	Presets     []theme.Preset
	UserError   string
	UserSuccess string
	NewsError   string
}

// formatDate renders an RFC 3339 timestamp as a short date for the news
// column. Unparseable values are shown as-is.
func formatDate(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return t.Format("2006-01-02")
}

// newChatMessage converts a stored message into its rendered form. User
// text is kept verbatim for escaped pre-wrap display; AI text goes through
// the markdown renderer.
func newChatMessage(m history.Message) chatMessage {
	cm := chatMessage{ID: m.ID, IsUser: m.Sender == history.SenderUser}
	if cm.IsUser {
		cm.Text = m.Text
	} else {
		cm.HTML = renderMarkdown(m.Text)
	}
	return cm
}

// render executes the named page template. Render failures log and return
// a bare 500 since there is no simpler page to fall back to.
func (s *Server) render(w http.ResponseWriter, page string, data any) {
	tmpl, ok := templates[page]
	if !ok {
		s.logger.Error("unknown template", "page", page)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		s.logger.Error("failed to render template", "page", page, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
