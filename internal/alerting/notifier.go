package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// telegramMaxChars is the sendMessage text limit.
const telegramMaxChars = 4096

// Entry is one answered question in a digest.
type Entry struct {
	Question string
	Answer   string
	AsOf     string
}

// Notification is a digest ready for delivery.
type Notification struct {
	Bucket        time.Time
	Title         string
	Entries       []Entry
	Failed        int
	AdditionalMsg string
}

// Notifier delivers digests.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier posts digests through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	client   *resty.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier builds a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		client:   client,
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered digest.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    Render(note),
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(fmt.Sprintf("/bot%s/sendMessage", n.botToken))
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("telegram status %d", resp.StatusCode())
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false: %s", result.Description)
	}

	n.logger.Info().Time("bucket", note.Bucket).
		Int("entries", len(note.Entries)).
		Int("failed", note.Failed).
		Msg("digest delivered (Telegram)")
	return nil
}

// Render formats a digest as plain text, capped at the Telegram message limit.
func Render(note Notification) string {
	builder := strings.Builder{}
	title := note.Title
	if title == "" {
		title = "Metal price digest"
	}
	builder.WriteString(fmt.Sprintf("[%s] %s\n", title, note.Bucket.Format("2 Jan 2006")))
	for _, e := range note.Entries {
		builder.WriteString("\n")
		builder.WriteString(fmt.Sprintf("Q: %s\n", e.Question))
		builder.WriteString(e.Answer)
		builder.WriteString("\n")
	}
	if note.Failed > 0 {
		builder.WriteString(fmt.Sprintf("\n%d question(s) could not be answered.\n", note.Failed))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString("\n")
		builder.WriteString(note.AdditionalMsg)
	}

	text := builder.String()
	if runes := []rune(text); len(runes) > telegramMaxChars {
		text = string(runes[:telegramMaxChars-1]) + "…"
	}
	return text
}

var _ Notifier = (*TelegramNotifier)(nil)
