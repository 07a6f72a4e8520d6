package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel used when none is configured.
const DefaultRedisChannel = "outline_events"

type redisBus struct {
	logger  *slog.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisBus connects to Redis at url (redis://...) and pings it.
func NewRedisBus(ctx context.Context, url, channel string, logger *slog.Logger) (Bus, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return newRedisBus(ctx, goredis.NewClient(opts), channel, logger)
}

func newRedisBus(ctx context.Context, rdb *goredis.Client, channel string, logger *slog.Logger) (Bus, error) {
	if channel == "" {
		channel = DefaultRedisChannel
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{
		logger:  logger.With("component", "redis_bus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal bus message: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(Message)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	// Receive blocks until the subscription is confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.logger.Warn("bad redis bus payload", "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()

	return nil
}

func (b *redisBus) Close() error {
	return b.rdb.Close()
}
