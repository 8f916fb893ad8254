/*
Package notify delivers ledger messages to people.

IMPLEMENTATIONS:
  Telegram: Bot API sendMessage to one chat (the shop's channel or group)
  Log:      writes the message to the structured log; used when Telegram
            is not configured, so development setups still show what
            would have been sent

Both satisfy generic.Notifier. Callers bound delivery with the context.
*/
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/warp/cashback-engine/generic"
)

// DefaultTelegramURL is the Bot API root.
const DefaultTelegramURL = "https://api.telegram.org"

// ErrNotConfigured is returned by Send when the bot token or chat is missing.
var ErrNotConfigured = errors.New("telegram notifier not configured")

// Telegram sends messages through the Telegram Bot API.
type Telegram struct {
	token      string
	chatID     string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Telegram)

func WithHTTPClient(c *http.Client) Option {
	return func(t *Telegram) {
		t.httpClient = c
	}
}

// WithBaseURL points the client at another Bot API server.
func WithBaseURL(u string) Option {
	return func(t *Telegram) {
		t.baseURL = u
	}
}

func NewTelegram(token, chatID string, opts ...Option) *Telegram {
	t := &Telegram{
		token:      token,
		chatID:     chatID,
		baseURL:    DefaultTelegramURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Configured returns true if both the bot token and chat ID are set.
func (t *Telegram) Configured() bool {
	return t.token != "" && t.chatID != ""
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	ErrorCode   int    `json:"error_code,omitempty"`
}

// Send posts text to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if !t.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	var parsed apiResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode >= 400 || !parsed.OK {
		if parsed.Description != "" {
			return fmt.Errorf("telegram API error: status %d: %s", resp.StatusCode, parsed.Description)
		}
		return fmt.Errorf("telegram API error: status %d", resp.StatusCode)
	}
	return nil
}

var _ generic.Notifier = (*Telegram)(nil)
