// Package notification delivers alerts raised after a refresh to external
// channels (log, generic webhook, Telegram).
package notification

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"marketcore/internal/model"
)

// Level represents the severity of a notification.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// LevelFor maps an alert kind to a severity.
func LevelFor(kind model.AlertKind) Level {
	switch kind {
	case model.AlertMACrossoverUp, model.AlertMACrossoverDown:
		return LevelCritical
	case model.AlertPriceMove, model.AlertVolumeSpike:
		return LevelWarning
	default:
		return LevelInfo
	}
}

// Notification is one alert raised for a symbol.
type Notification struct {
	Level  Level       `json:"level"`
	Symbol string      `json:"symbol"`
	Alert  model.Alert `json:"alert"`
}

// New builds a Notification for alert on symbol.
func New(symbol string, alert model.Alert) Notification {
	return Notification{Level: LevelFor(alert.Kind), Symbol: symbol, Alert: alert}
}

// Title is a one-line summary.
func (n Notification) Title() string {
	return n.Symbol + " " + string(n.Alert.Kind)
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers a notification. Returns error if delivery fails.
	Send(ctx context.Context, n Notification) error
}

// LogNotifier logs notifications.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (l *LogNotifier) Send(ctx context.Context, n Notification) error {
	log.Printf("[notify] [%s] %s: %s", n.Level, n.Title(), n.Alert.Message)
	return nil
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Throttled forwards a notification only if the same (symbol, kind) pair was
// not forwarded within the cooldown. Conditions such as consolidation hold
// for many consecutive ticks.
type Throttled struct {
	next   Notifier
	recent *expirable.LRU[string, struct{}]
}

// NewThrottled wraps next with a per (symbol, kind) cooldown.
func NewThrottled(next Notifier, cooldown time.Duration) *Throttled {
	return &Throttled{
		next:   next,
		recent: expirable.NewLRU[string, struct{}](4096, nil, cooldown),
	}
}

func (t *Throttled) Send(ctx context.Context, n Notification) error {
	key := n.Symbol + "|" + string(n.Alert.Kind)
	if _, seen := t.recent.Get(key); seen {
		return nil
	}
	if err := t.next.Send(ctx, n); err != nil {
		return err
	}
	t.recent.Add(key, struct{}{})
	return nil
}
