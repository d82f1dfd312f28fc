package model

import "context"

// ── Port Interfaces ──
// These interfaces decouple the analytics core from concrete storage and
// transport implementations (SQLite, memory, Redis, in-process broadcast).

// BarStore persists OHLCV bars keyed by (symbol, timestamp).
type BarStore interface {
	// Append validates and inserts one bar. A bar whose (symbol, timestamp)
	// already exists is rejected with ErrDuplicateBar, never overwritten.
	Append(ctx context.Context, bar Bar) error

	// AppendBatch inserts bars, skipping duplicates. Returns how many rows
	// were actually inserted.
	AppendBatch(ctx context.Context, bars []Bar) (int, error)

	// Query returns up to limit bars for symbol, newest first.
	Query(ctx context.Context, symbol string, limit int) ([]Bar, error)

	// Latest returns the most recent bar for symbol, ok=false if none.
	Latest(ctx context.Context, symbol string) (Bar, bool, error)

	// Symbols lists every symbol with at least one bar.
	Symbols(ctx context.Context) ([]string, error)

	// Close releases underlying resources.
	Close() error
}

// BarPublisher pushes freshly appended bars to interested parties.
type BarPublisher interface {
	Publish(ctx context.Context, bar Bar) error
}

// PublisherFunc adapts a function to BarPublisher.
type PublisherFunc func(ctx context.Context, bar Bar) error

func (f PublisherFunc) Publish(ctx context.Context, bar Bar) error { return f(ctx, bar) }

// MultiPublisher publishes to every publisher in order and returns the first
// error after attempting all of them.
type MultiPublisher []BarPublisher

func (m MultiPublisher) Publish(ctx context.Context, bar Bar) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, bar); err != nil && first == nil {
			first = err
		}
	}
	return first
}
