// Package telegram wraps the Telegram Bot API over plain net/http. Only the
// calls the daybook bot needs are implemented: long polling, sending and
// editing messages, inline keyboards and callback answers.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/thdev-org/marks-daybook/pkg/config"
)

// Update represents a Telegram update.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message represents a Telegram message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

// User represents a Telegram user.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat represents a Telegram chat.
type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	FirstName string `json:"first_name,omitempty"`
}

// CallbackQuery represents a callback query from an inline keyboard.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// InlineKeyboardMarkup represents an inline keyboard.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton represents a button in an inline keyboard.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// Client is the Telegram Bot API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Telegram client. The HTTP timeout must exceed the
// long-poll timeout or getUpdates calls fail before the server answers.
func NewClient(cfg config.TelegramConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Client{
		token:   cfg.Token,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: cfg.PollTimeout + 30*time.Second,
		},
		logger: logger,
	}
}

func (c *Client) callAPI(ctx context.Context, method string, body map[string]interface{}, result interface{}) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", method, err)
		}
		payload = bytes.NewReader(raw)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("%s failed: %s (code %d)", method, apiResp.Description, apiResp.ErrorCode)
	}
	if result != nil && len(apiResp.Result) > 0 {
		if err := json.Unmarshal(apiResp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// GetMe returns information about the bot; used to verify the token.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.callAPI(ctx, "getMe", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUpdates fetches updates using long polling.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	body := map[string]interface{}{
		"timeout": int(timeout.Seconds()),
	}
	if offset > 0 {
		body["offset"] = offset
	}

	var updates []Update
	if err := c.callAPI(ctx, "getUpdates", body, &updates); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		c.logger.Debug("updates received", zap.Int("count", len(updates)))
	}
	return updates, nil
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	body := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	return c.callAPI(ctx, "sendMessage", body, nil)
}

// SendHTML sends an HTML-formatted message.
func (c *Client) SendHTML(ctx context.Context, chatID int64, html string) error {
	body := map[string]interface{}{
		"chat_id":    chatID,
		"text":       html,
		"parse_mode": "HTML",
	}
	return c.callAPI(ctx, "sendMessage", body, nil)
}

// SendWithKeyboard sends a message with an inline keyboard.
func (c *Client) SendWithKeyboard(ctx context.Context, chatID int64, text string, keyboard [][]InlineKeyboardButton) error {
	body := map[string]interface{}{
		"chat_id":      chatID,
		"text":         text,
		"reply_markup": InlineKeyboardMarkup{InlineKeyboard: keyboard},
	}
	return c.callAPI(ctx, "sendMessage", body, nil)
}

// EditMessageText replaces the text of a previously sent message, dropping
// any inline keyboard attached to it.
func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int64, text string) error {
	body := map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	return c.callAPI(ctx, "editMessageText", body, nil)
}

// AnswerCallbackQuery acknowledges a callback query so the client stops
// showing a progress indicator.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error {
	body := map[string]interface{}{
		"callback_query_id": callbackQueryID,
	}
	return c.callAPI(ctx, "answerCallbackQuery", body, nil)
}
