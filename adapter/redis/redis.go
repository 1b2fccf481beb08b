// Package redis publishes image completion events on a Redis pub/sub channel.
package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/camrelay/adapter"
)

const (
	DefaultChannel = "camrelay:image_completed"
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 3

	baseBackoff = 500 * time.Millisecond
)

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: camrelay:image_completed).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
}

// Adapter publishes image completion events via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
	retry  adapter.RetryPolicy

	receivers atomic.Int64
}

// LastReceivers is the subscriber count reported by the last successful
// PUBLISH.
func (a *Adapter) LastReceivers() int64 {
	return a.receivers.Load()
}

// New parses cfg.URL and creates the client. No connection is made until
// the first Publish.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	cfg.Channel = cmp.Or(cfg.Channel, DefaultChannel)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
		retry:  adapter.RetryPolicy{Retries: cfg.Retries, Backoff: baseBackoff},
	}, nil
}

// Publish sends the event as JSON on the configured channel. Every attempt
// gets its own Timeout.
func (a *Adapter) Publish(ctx context.Context, event *adapter.ImageCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	err = a.retry.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
		n, err := a.client.Publish(ctx, a.config.Channel, body).Result()
		if err == nil {
			a.receivers.Store(n)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", a.config.Channel, err)
	}
	return nil
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
