// ABOUTME: Per-username chat history store
// ABOUTME: Each username maps to its own key holding an ordered JSON message list

package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gapchat/gapchat/internal/kv"
)

// keyPrefix namespaces one history key per username.
const keyPrefix = "chatHistory:"

// Sender identifies who authored a message.
type Sender string

// Sender values.
const (
	SenderUser Sender = "USER"
	SenderAI   Sender = "AI"
)

// Message is a single chat message. Messages are immutable once created;
// ordering is insertion order.
type Message struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

// Store manages per-username chat transcripts.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
}

// NewStore creates a chat history store on top of the given key-value store.
func NewStore(kvStore kv.Store) *Store {
	return &Store{
		kv:     kvStore,
		logger: slog.Default().With("component", "history"),
	}
}

func key(username string) string {
	return keyPrefix + username
}

// Get returns the ordered message list for username, empty if none stored.
func (s *Store) Get(ctx context.Context, username string) ([]Message, error) {
	data, err := s.kv.Get(ctx, key(username))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading chat history: %w", err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("decoding chat history: %w", err)
	}
	return messages, nil
}

// Save overwrites username's history with the given ordered message list.
func (s *Store) Save(ctx context.Context, username string, messages []Message) error {
	if messages == nil {
		messages = []Message{}
	}

	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encoding chat history: %w", err)
	}
	if err := s.kv.Set(ctx, key(username), data); err != nil {
		return fmt.Errorf("writing chat history: %w", err)
	}
	return nil
}

// Clear removes username's stored history entirely.
func (s *Store) Clear(ctx context.Context, username string) error {
	if err := s.kv.Delete(ctx, key(username)); err != nil {
		return fmt.Errorf("clearing chat history: %w", err)
	}
	s.logger.Info("cleared chat history", "username", username)
	return nil
}
