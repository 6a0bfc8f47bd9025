// ABOUTME: Client for the Google generative-language API used by the chat view
// ABOUTME: Converts chat history to the transcript format and never raises to callers

package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gapchat/gapchat/internal/history"
)

// DefaultModel is the model used when the config doesn't name one.
const DefaultModel = "gemini-2.5-flash"

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// systemInstruction constrains the model persona: answer questions, never
// claim a corporate origin, self-identify only as an AI model.
const systemInstruction = "شما یک مدل هوش مصنوعی هستید که به سوالات پاسخ می‌دهد. در معرفی خود، از اشاره به اینکه توسط گوگل ساخته شده‌اید خودداری کنید و فقط بگویید یک مدل هوش مصنوعی هستید."

// User-facing fallback strings. The gateway converts every failure into one
// of these instead of propagating an error to the view layer.
const (
	// FallbackNotConfigured is returned when no API key is configured.
	FallbackNotConfigured = "خطا: سرویس هوش مصنوعی به درستی مقداردهی اولیه نشده است. لطفاً کلید API را بررسی کنید."

	// FallbackUnavailable is returned on any transport or response failure.
	FallbackUnavailable = "متاسفانه در حال حاضر قادر به پاسخگویی نیستم. لطفا دوباره تلاش کنید."
)

// content is one turn of the API transcript. Role is "user" or "model".
type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Client calls the generative-language API. It is stateless: every call
// reconstructs the conversation from the history argument.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a gateway client. An empty apiKey is allowed: calls then
// short-circuit to FallbackNotConfigured instead of failing at startup.
// Empty model and baseURL fall back to the defaults.
func NewClient(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default().With("component", "gemini"),
	}

	if apiKey == "" {
		c.logger.Error("no API key configured, chat replies will be the fallback string")
	}
	return c
}

// transcript converts the ordered message history into the API's
// alternating-role format.
func transcript(messages []history.Message) []content {
	contents := make([]content, 0, len(messages))
	for _, msg := range messages {
		role := "model"
		if msg.Sender == history.SenderUser {
			role = "user"
		}
		contents = append(contents, content{
			Role:  role,
			Parts: []part{{Text: msg.Text}},
		})
	}
	return contents
}

// GetReply sends the full conversation, which already includes the new
// prompt, and returns the model's reply text verbatim. On any failure it
// returns a fixed localized fallback string; it never returns an error.
func (c *Client) GetReply(ctx context.Context, prompt, username string, messages []history.Message) string {
	if c.apiKey == "" {
		return FallbackNotConfigured
	}

	reqBody := generateRequest{
		Contents: transcript(messages),
		SystemInstruction: &content{
			Parts: []part{{Text: systemInstruction}},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		c.logger.Error("failed to encode request", "error", err, "username", username)
		return FallbackUnavailable
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		c.logger.Error("failed to create request", "error", err, "username", username)
		return FallbackUnavailable
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("request failed", "error", err, "username", username)
		return FallbackUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("unexpected status from API", "status", resp.StatusCode, "username", username)
		return FallbackUnavailable
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		c.logger.Error("failed to decode response", "error", err, "username", username)
		return FallbackUnavailable
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		c.logger.Error("response contained no candidates", "username", username)
		return FallbackUnavailable
	}

	var text string
	for _, p := range genResp.Candidates[0].Content.Parts {
		text += p.Text
	}
	return text
}

// ClearSession is a no-op: the gateway keeps no per-user server-side state,
// every call rebuilds context from the history argument.
func (c *Client) ClearSession(username string) {}
