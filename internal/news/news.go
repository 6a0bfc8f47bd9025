// ABOUTME: News store with article CRUD and sorted retrieval
// ABOUTME: Persists the article list as one JSON blob in the kv store

package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gapchat/gapchat/internal/kv"
)

// newsKey is the key-value namespace owned by this store.
const newsKey = "news"

// DefaultLimit is the number of articles Latest returns when no limit is given.
const DefaultLimit = 5

// Article is a news item shown on the login page and managed by admins.
// Date is an RFC3339 timestamp string.
type Article struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Date    string `json:"date"`
}

// Store manages news articles.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a news store on top of the given key-value store.
func NewStore(kvStore kv.Store) *Store {
	return &Store{
		kv:     kvStore,
		logger: slog.Default().With("component", "news"),
		now:    time.Now,
	}
}

func (s *Store) load(ctx context.Context) ([]Article, error) {
	data, err := s.kv.Get(ctx, newsKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading news: %w", err)
	}

	var articles []Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("decoding news: %w", err)
	}
	return articles, nil
}

func (s *Store) save(ctx context.Context, articles []Article) error {
	data, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("encoding news: %w", err)
	}
	if err := s.kv.Set(ctx, newsKey, data); err != nil {
		return fmt.Errorf("writing news: %w", err)
	}
	return nil
}

// Latest returns articles sorted by date descending, truncated to limit.
// A non-positive limit falls back to DefaultLimit.
func (s *Store) Latest(ctx context.Context, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	articles, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Date > articles[j].Date
	})

	if len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

// Add appends a new article with a generated id and the current timestamp.
func (s *Store) Add(ctx context.Context, title, content string) (*Article, error) {
	articles, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	article := Article{
		ID:      uuid.New().String(),
		Title:   title,
		Content: content,
		Date:    s.now().UTC().Format(time.RFC3339),
	}
	articles = append(articles, article)

	if err := s.save(ctx, articles); err != nil {
		return nil, err
	}

	s.logger.Info("added news article", "id", article.ID, "title", title)
	return &article, nil
}

// Delete removes the article with the given id and reports whether a
// record was actually removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	articles, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	kept := articles[:0]
	for _, a := range articles {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(articles) {
		return false, nil
	}

	if err := s.save(ctx, kept); err != nil {
		return false, err
	}

	s.logger.Info("deleted news article", "id", id)
	return true, nil
}
