package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"marketcore/internal/metrics"
	"marketcore/internal/model"
)

const (
	channelPrefix    = "pub:bar:"
	latestKeyPrefix  = "bar:latest:"
	streamKeyPrefix  = "bar:stream:"
	defaultLatestTTL = 30 * time.Minute
	// About a week of 5-minute bars.
	streamMaxLen = 2000
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	// InstanceID tags every published message so a Subscriber on the same
	// process can skip its own bars.
	InstanceID string

	MaxFailures  int           // breaker threshold, default 5
	ResetTimeout time.Duration // breaker cool-down, default 10s
}

// ChannelFor returns the pub/sub channel carrying bars for symbol.
func ChannelFor(symbol string) string { return channelPrefix + symbol }

// LatestKey returns the key holding the newest bar for symbol.
func LatestKey(symbol string) string { return latestKeyPrefix + symbol }

// StreamKey returns the capped stream holding recent bars for symbol.
func StreamKey(symbol string) string { return streamKeyPrefix + symbol }

// envelope is the wire format on pub:bar:* channels.
type envelope struct {
	Origin string    `json:"origin"`
	Bar    model.Bar `json:"bar"`
}

func encodeEnvelope(origin string, bar model.Bar) (string, error) {
	data, err := json.Marshal(envelope{Origin: origin, Bar: bar})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeEnvelope(payload string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return envelope{}, err
	}
	if err := env.Bar.Validate(); err != nil {
		return envelope{}, err
	}
	return env, nil
}

// Publisher pushes every new bar to Redis: SET latest, XADD to a capped
// stream and PUBLISH on the symbol channel, in one pipeline. It implements
// model.BarPublisher.
type Publisher struct {
	client     *goredis.Client
	cb         *CircuitBreaker
	instanceID string
}

var _ model.BarPublisher = (*Publisher)(nil)

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// InstanceID returns the origin tag stamped on published bars.
func (p *Publisher) InstanceID() string { return p.instanceID }

// New creates a Publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	reset := cfg.ResetTimeout
	if reset <= 0 {
		reset = 10 * time.Second
	}
	cb := NewCircuitBreaker(maxFailures, reset)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
		metrics.RedisCircuitBreakerState.Set(float64(to))
		if to == StateOpen {
			metrics.RedisCircuitBreakerTrips.Inc()
		}
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client, cb: cb, instanceID: cfg.InstanceID}, nil
}

// Publish writes bar through the circuit breaker. While the breaker is open
// the bar is not sent; delivery is best effort and nothing is replayed.
func (p *Publisher) Publish(ctx context.Context, bar model.Bar) error {
	return p.cb.Do(ctx, func(ctx context.Context) error {
		return p.writeBar(ctx, bar)
	})
}

// writeBar performs pipelined writes for one bar.
func (p *Publisher) writeBar(ctx context.Context, bar model.Bar) error {
	payload, err := encodeEnvelope(p.instanceID, bar)
	if err != nil {
		return err
	}
	latest := string(bar.JSON())

	start := time.Now()
	pipe := p.client.Pipeline()

	// SET latest bar with TTL
	pipe.Set(ctx, LatestKey(bar.Symbol), latest, defaultLatestTTL)

	// XADD to the capped stream
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: StreamKey(bar.Symbol),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": latest,
		},
	})

	// PUBLISH for other instances
	pipe.Publish(ctx, ChannelFor(bar.Symbol), payload)

	_, err = pipe.Exec(ctx)
	metrics.RedisPublishDur.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Printf("[redis] pipeline error for %s: %v", bar.Key(), err)
		return fmt.Errorf("redis publish %s: %w", bar.Key(), err)
	}
	return nil
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
