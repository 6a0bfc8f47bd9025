// ABOUTME: Theme store with completeness-checked persistence and CSS rendering
// ABOUTME: Persists the UI color theme as one JSON blob in the kv store

package theme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gapchat/gapchat/internal/kv"
)

// themeKey is the key-value namespace owned by this store.
const themeKey = "theme"

// Theme holds the color values the views render with. A stored theme is
// only honored when every key is present; otherwise Get falls back to the
// default palette.
type Theme struct {
	Primary        string `json:"primary" toml:"primary"`
	PrimaryDark    string `json:"primaryDark" toml:"primary_dark"`
	PrimaryLight   string `json:"primaryLight" toml:"primary_light"`
	TextStrong     string `json:"textStrong" toml:"text_strong"`
	TextMuted      string `json:"textMuted" toml:"text_muted"`
	BgGradientFrom string `json:"bgGradientFrom" toml:"bg_gradient_from"`
	BgGradientTo   string `json:"bgGradientTo" toml:"bg_gradient_to"`
}

// requiredKeys are the JSON keys a stored theme must carry to be valid.
var requiredKeys = []string{
	"primary",
	"primaryDark",
	"primaryLight",
	"textStrong",
	"textMuted",
	"bgGradientFrom",
	"bgGradientTo",
}

// Default is the sky palette applied when nothing valid is stored.
func Default() Theme {
	return Theme{
		Primary:        "#0ea5e9",
		PrimaryDark:    "#0284c7",
		PrimaryLight:   "#7dd3fc",
		TextStrong:     "#1e3a8a",
		TextMuted:      "#0369a1",
		BgGradientFrom: "#e0f2fe",
		BgGradientTo:   "#bfdbfe",
	}
}

// Store manages the persisted theme override.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
}

// NewStore creates a theme store on top of the given key-value store.
func NewStore(kvStore kv.Store) *Store {
	return &Store{
		kv:     kvStore,
		logger: slog.Default().With("component", "theme"),
	}
}

// Get returns the persisted theme if it contains every required key,
// otherwise the default.
func (s *Store) Get(ctx context.Context) Theme {
	data, err := s.kv.Get(ctx, themeKey)
	if errors.Is(err, kv.ErrNotFound) {
		return Default()
	}
	if err != nil {
		s.logger.Error("failed to read theme, using default", "error", err)
		return Default()
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Error("failed to parse stored theme, using default", "error", err)
		return Default()
	}
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			return Default()
		}
	}

	var t Theme
	if err := json.Unmarshal(data, &t); err != nil {
		s.logger.Error("failed to decode stored theme, using default", "error", err)
		return Default()
	}
	return t
}

// Save persists the theme verbatim.
func (s *Store) Save(ctx context.Context, t Theme) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding theme: %w", err)
	}
	if err := s.kv.Set(ctx, themeKey, data); err != nil {
		return fmt.Errorf("writing theme: %w", err)
	}
	s.logger.Info("saved theme override")
	return nil
}

// Reset removes the persisted override and returns the default theme.
func (s *Store) Reset(ctx context.Context) (Theme, error) {
	if err := s.kv.Delete(ctx, themeKey); err != nil {
		return Default(), fmt.Errorf("removing theme override: %w", err)
	}
	s.logger.Info("reset theme to default")
	return Default(), nil
}

// CSS renders the theme as a :root custom-property block for injection into
// page heads. Pure and idempotent: equal themes render equal blocks.
func CSS(t Theme) string {
	var b strings.Builder
	b.WriteString(":root {\n")
	fmt.Fprintf(&b, "  --color-primary: %s;\n", t.Primary)
	fmt.Fprintf(&b, "  --color-primary-dark: %s;\n", t.PrimaryDark)
	fmt.Fprintf(&b, "  --color-primary-light: %s;\n", t.PrimaryLight)
	fmt.Fprintf(&b, "  --color-text-strong: %s;\n", t.TextStrong)
	fmt.Fprintf(&b, "  --color-text-muted: %s;\n", t.TextMuted)
	fmt.Fprintf(&b, "  --color-bg-gradient-from: %s;\n", t.BgGradientFrom)
	fmt.Fprintf(&b, "  --color-bg-gradient-to: %s;\n", t.BgGradientTo)
	b.WriteString("}\n")
	return b.String()
}
