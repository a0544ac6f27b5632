// Package progress publishes batch progress snapshots to Redis so other
// processes can watch a running classification.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Veraticus/sift/internal/engine"
	"github.com/Veraticus/sift/internal/model"
)

// Defaults for the published snapshot.
const (
	DefaultKey     = "sift:progress"
	DefaultChannel = "sift:progress:events"
	DefaultTTL     = 24 * time.Hour
	publishTimeout = 2 * time.Second
)

// Client is the subset of redis.Cmdable the publisher needs.
type Client interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Snapshot is the JSON document stored under the key and sent on the channel.
type Snapshot struct {
	UpdatedAt time.Time `json:"updatedAt"`
	UserID    string    `json:"userId,omitempty"`
	model.Progress
	Done bool `json:"done"`
}

// Publisher is an engine.ProgressObserver backed by Redis. Publishing is
// best-effort: failures are logged once per batch and never stop the batch.
type Publisher struct {
	client  Client
	logger  *slog.Logger
	now     func() time.Time
	key     string
	channel string
	userID  string
	ttl     time.Duration
	mu      sync.Mutex
	warned  bool
}

var _ engine.ProgressObserver = (*Publisher)(nil)

// Option customizes a Publisher.
type Option func(*Publisher)

// WithKey sets the key holding the latest snapshot.
func WithKey(key string) Option {
	return func(p *Publisher) {
		if key != "" {
			p.key = key
		}
	}
}

// WithChannel sets the pub/sub channel.
func WithChannel(channel string) Option {
	return func(p *Publisher) {
		if channel != "" {
			p.channel = channel
		}
	}
}

// WithUser tags snapshots with the user whose batch is running.
func WithUser(userID string) Option {
	return func(p *Publisher) {
		p.userID = userID
	}
}

// WithLogger sets the publisher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher on client.
func NewPublisher(client Client, opts ...Option) *Publisher {
	p := &Publisher{
		client:  client,
		logger:  slog.Default(),
		now:     time.Now,
		key:     DefaultKey,
		channel: DefaultChannel,
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect opens a client for addr and verifies it answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// OnProgress stores and announces p.
func (p *Publisher) OnProgress(progress model.Progress) {
	payload, err := json.Marshal(Snapshot{
		Progress:  progress,
		UserID:    p.userID,
		Done:      progress.Done(),
		UpdatedAt: p.now().UTC(),
	})
	if err != nil {
		p.warn("failed to encode progress", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.client.Set(ctx, p.key, payload, p.ttl).Err(); err != nil {
		p.warn("failed to store progress", err)
		return
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.warn("failed to publish progress", err)
	}
}

func (p *Publisher) warn(msg string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.warned {
		p.logger.Debug(msg, "key", p.key, "error", err)
		return
	}
	p.warned = true
	p.logger.Warn(msg, "key", p.key, "error", err)
}
