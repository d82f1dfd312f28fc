// Package broadcast fans new bars out to subscribers by symbol.
//
// Each subscriber owns a buffered channel and a set of symbols. Publish never
// blocks: a full channel drops the bar for that subscriber only. Nothing is
// replayed to a subscriber that missed a bar.
package broadcast

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"marketcore/internal/metrics"
	"marketcore/internal/model"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 64

// Subscriber is one registered consumer.
type Subscriber struct {
	ID string

	ch      chan model.Bar
	symbols map[string]struct{} // guarded by Broadcaster.mu
}

// C returns the channel bars are delivered on. It is closed by Unregister.
func (s *Subscriber) C() <-chan model.Bar { return s.ch }

// Broadcaster maintains topic → subscriber sets.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	topics      map[string]map[string]*Subscriber
	bufSize     int

	// OnDrop is called when a bar is dropped for a slow subscriber.
	OnDrop func(subscriberID string, bar model.Bar)
}

var _ model.BarPublisher = (*Broadcaster)(nil)

// New creates a Broadcaster whose subscriber channels hold bufSize bars.
func New(bufSize int) *Broadcaster {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Broadcaster{
		subscribers: make(map[string]*Subscriber),
		topics:      make(map[string]map[string]*Subscriber),
		bufSize:     bufSize,
	}
}

// Register adds a subscriber. An empty id gets a generated one; registering
// an existing id returns the existing subscriber.
func (b *Broadcaster) Register(id string) *Subscriber {
	if id == "" {
		id = uuid.NewString()
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.subscribers[id]; ok {
		return s
	}
	s := &Subscriber{
		ID:      id,
		ch:      make(chan model.Bar, b.bufSize),
		symbols: make(map[string]struct{}),
	}
	b.subscribers[id] = s
	metrics.Subscribers.Set(float64(len(b.subscribers)))
	return s
}

// Unregister removes the subscriber from every topic and closes its channel.
func (b *Broadcaster) Unregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.subscribers[id]
	if !ok {
		return
	}
	for sym := range s.symbols {
		b.removeFromTopic(sym, id)
	}
	delete(b.subscribers, id)
	close(s.ch)
	metrics.Subscribers.Set(float64(len(b.subscribers)))
}

// Subscribe adds symbol to the subscriber's set.
func (b *Broadcaster) Subscribe(id, symbol string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.subscribers[id]
	if !ok {
		return fmt.Errorf("%w: subscriber %q", model.ErrNotFound, id)
	}
	s.symbols[symbol] = struct{}{}
	topic, ok := b.topics[symbol]
	if !ok {
		topic = make(map[string]*Subscriber)
		b.topics[symbol] = topic
	}
	topic[id] = s
	return nil
}

// Unsubscribe removes symbol from the subscriber's set.
func (b *Broadcaster) Unsubscribe(id, symbol string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.subscribers[id]
	if !ok {
		return fmt.Errorf("%w: subscriber %q", model.ErrNotFound, id)
	}
	delete(s.symbols, symbol)
	b.removeFromTopic(symbol, id)
	return nil
}

// removeFromTopic drops id from symbol's topic. Caller holds b.mu.
func (b *Broadcaster) removeFromTopic(symbol, id string) {
	topic, ok := b.topics[symbol]
	if !ok {
		return
	}
	delete(topic, id)
	if len(topic) == 0 {
		delete(b.topics, symbol)
	}
}

// Publish delivers bar to every subscriber of bar.Symbol without blocking.
func (b *Broadcaster) Publish(_ context.Context, bar model.Bar) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, s := range b.topics[bar.Symbol] {
		select {
		case s.ch <- bar:
			metrics.BroadcastSent.Inc()
		default:
			metrics.BroadcastDrops.Inc()
			if b.OnDrop != nil {
				b.OnDrop(id, bar)
			} else {
				log.Printf("[broadcast] subscriber %s full, dropping %s", id, bar.Key())
			}
		}
	}
	return nil
}

// Symbols returns every symbol with at least one subscriber, sorted.
func (b *Broadcaster) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.topics))
	for sym := range b.topics {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Subscriptions returns the subscriber's symbols, sorted.
func (b *Broadcaster) Subscriptions(id string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.subscribers[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of registered subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
