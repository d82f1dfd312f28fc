package notification

import (
	"context"
	"log"
	"net/http"
	"time"
)

// WebhookNotifier POSTs each notification as JSON to a fixed URL. Any 2xx
// answer counts as delivered.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier for url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: newHTTPClient()}
}

type webhookPayload struct {
	Level      Level     `json:"level"`
	Symbol     string    `json:"symbol"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	ComputedAt time.Time `json:"computedAt"`
	SentAt     time.Time `json:"sentAt"`
}

func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	_, err := postJSON(ctx, w.client, "webhook", w.url, webhookPayload{
		Level:      n.Level,
		Symbol:     n.Symbol,
		Kind:       string(n.Alert.Kind),
		Title:      n.Title(),
		Message:    n.Alert.Message,
		ComputedAt: n.Alert.ComputedAt,
		SentAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	log.Printf("[notify] webhook delivered %s", n.Title())
	return nil
}
