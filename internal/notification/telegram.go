package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier posts alerts to a chat through the Bot API sendMessage
// method. Info-level alerts are delivered silently.
type TelegramNotifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// NewTelegramNotifier creates a notifier for one bot and chat.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  telegramAPI,
		client:   newHTTPClient(),
	}
}

type sendMessage struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramNotifier) Send(ctx context.Context, n Notification) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	body, err := postJSON(ctx, t.client, "telegram", url, sendMessage{
		ChatID:              t.chatID,
		Text:                formatTelegram(n),
		ParseMode:           "HTML",
		DisableNotification: n.Level == LevelInfo,
	})
	if err != nil {
		return err
	}

	var resp botResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("telegram: decode response: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram: rejected: %s", resp.Description)
	}
	log.Printf("[notify] telegram delivered %s", n.Title())
	return nil
}

func levelIcon(l Level) string {
	switch l {
	case LevelCritical:
		return "🚨"
	case LevelWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// formatTelegram renders n as Bot API HTML.
func formatTelegram(n Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n\n", levelIcon(n.Level), html.EscapeString(n.Title()))
	b.WriteString(html.EscapeString(n.Alert.Message))
	if !n.Alert.ComputedAt.IsZero() {
		fmt.Fprintf(&b, "\n<i>%s</i>", n.Alert.ComputedAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}
