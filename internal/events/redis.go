package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink はイベントを Redis の Pub/Sub チャンネルへ中継します。
type RedisSink struct {
	rdb     *redis.Client
	channel string
}

// NewRedisSink は RedisSink を作成します。
func NewRedisSink(rdb *redis.Client, channel string) *RedisSink {
	return &RedisSink{rdb: rdb, channel: channel}
}

// NewRedisSinkFromURL は接続URLから RedisSink を作成します。
func NewRedisSinkFromURL(rawURL, channel string) (*RedisSink, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewRedisSink(redis.NewClient(opt), channel), nil
}

// Deliver はイベントを JSON にして publish します。
func (s *RedisSink) Deliver(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, s.channel, payload).Err()
}

// Close は Redis クライアントを閉じます。
func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
