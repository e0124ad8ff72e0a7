// Package redis publishes fresh indicator values and run lifecycle events to
// downstream consumers: streams for replayable history, latest-value keys for
// cheap point lookups, and pubsub for live dashboard pushes. Publish failures
// are isolated behind a circuit breaker so a dead Redis degrades the service
// instead of stalling it.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"quantdb/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Streams keep roughly a year of daily values plus slack.
	indicatorStreamMaxLen = 400
	runStreamMaxLen       = 1000
	defaultLatestTTL      = 24 * time.Hour

	runEventStream  = "run:events"
	runEventChannel = "pub:run:events"
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes indicator values and run events to Redis.
type Publisher struct {
	client  *goredis.Client
	breaker *CircuitBreaker
}

var _ model.Publisher = (*Publisher)(nil)

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New connects to Redis and returns a publisher. The breaker opens after 5
// consecutive failures and probes again after 10s.
func New(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	breaker := NewCircuitBreaker(5, 10*time.Second)
	breaker.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client, breaker: breaker}, nil
}

// PublishIndicators writes a batch of indicator values in one pipeline:
// XADD to each series stream, SET of the latest-value key, and PUBLISH for
// live subscribers. The whole batch is one breaker-guarded roundtrip.
func (p *Publisher) PublishIndicators(ctx context.Context, values []model.IndicatorValue) error {
	if len(values) == 0 {
		return nil
	}

	return p.breaker.Execute(func() error {
		pipe := p.client.Pipeline()
		for i := range values {
			v := &values[i]
			data := string(v.JSON())

			pipe.XAdd(ctx, &goredis.XAddArgs{
				Stream: v.StreamKey(),
				MaxLen: indicatorStreamMaxLen,
				Approx: true,
				Values: map[string]interface{}{"data": data},
			})
			pipe.Set(ctx, latestKey(v), data, defaultLatestTTL)
			pipe.Publish(ctx, pubsubChannel(v), data)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis indicator pipeline (%d values): %w", len(values), err)
		}
		return nil
	})
}

// PublishRunEvent appends a run lifecycle event to the run stream and pushes
// it to live subscribers.
func (p *Publisher) PublishRunEvent(ctx context.Context, ev model.RunEvent) error {
	return p.breaker.Execute(func() error {
		data := string(ev.JSON())
		pipe := p.client.Pipeline()
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: runEventStream,
			MaxLen: runStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": data},
		})
		pipe.Publish(ctx, runEventChannel, data)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis run event pipeline: %w", err)
		}
		return nil
	})
}

// WriteSnapshot stores an engine state checkpoint under key. No TTL: the
// checkpoint must survive until the next one replaces it.
func (p *Publisher) WriteSnapshot(ctx context.Context, key string, data []byte) error {
	return p.breaker.Execute(func() error {
		if err := p.client.Set(ctx, key, data, 0).Err(); err != nil {
			return fmt.Errorf("redis snapshot write %s: %w", key, err)
		}
		return nil
	})
}

// ReadSnapshot loads a previously stored checkpoint. Returns nil data when no
// checkpoint exists.
func (p *Publisher) ReadSnapshot(ctx context.Context, key string) ([]byte, error) {
	data, err := p.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis snapshot read %s: %w", key, err)
	}
	return data, nil
}

// BreakerState exposes the breaker state for health reporting.
func (p *Publisher) BreakerState() State {
	return p.breaker.CurrentState()
}

func latestKey(v *model.IndicatorValue) string {
	return "ind:" + v.Name + ":" + string(v.Freq) + ":latest:" + v.Symbol
}

func pubsubChannel(v *model.IndicatorValue) string {
	return "pub:ind:" + v.Name + ":" + string(v.Freq) + ":" + v.Symbol
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
