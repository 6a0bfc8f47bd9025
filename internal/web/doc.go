// Package web serves the gapchat UI: the public login page with its news
// column, the per-user chat view and the admin dashboard.
//
// Routing uses method-qualified patterns on a plain http.ServeMux. Views
// are server-rendered from templates embedded at build time, with the
// active color theme injected as a :root CSS block on every page.
//
// Authentication is a signed session cookie resolved against the single
// persisted session: the cookie alone is not enough, its subject must
// match the current session's user. State-changing routes are guarded by
// a double-submit CSRF token.
package web
