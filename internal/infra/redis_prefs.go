package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

const (
	defaultRedisURL    = "redis://localhost:6379"
	defaultRedisPrefix = "focuslock"
	redisOpTimeout     = 2 * time.Second

	// maxRedisKicks bounds the kick history list.
	maxRedisKicks = 1000
)

// RedisPrefs implements domain.PrefsStore and domain.KickHistory on Redis.
// Preferences live in one hash, kick records in a capped list of JSON
// documents (newest at the head).
type RedisPrefs struct {
	client   *redis.Client
	prefsKey string
	kicksKey string
}

// redisKick is the stored JSON shape of a domain.KickRecord.
type redisKick struct {
	ID        string `json:"id"`
	AppID     string `json:"app_id"`
	TrackedMs int64  `json:"tracked_ms"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	At        int64  `json:"at"`
}

// NewRedisPrefs connects to url and verifies the connection.
func NewRedisPrefs(url, prefix string) (*RedisPrefs, error) {
	if url == "" {
		url = defaultRedisURL
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPrefs{
		client:   client,
		prefsKey: prefix + ":prefs",
		kicksKey: prefix + ":kicks",
	}, nil
}

// Get returns the stored value for key.
func (r *RedisPrefs) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	value, err := r.client.HGet(ctx, r.prefsKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores a value.
func (r *RedisPrefs) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return r.client.HSet(ctx, r.prefsKey, key, value).Err()
}

// RecordKick pushes a record and trims the list.
func (r *RedisPrefs) RecordKick(rec domain.KickRecord) error {
	payload, err := json.Marshal(redisKick{
		ID:        rec.ID,
		AppID:     rec.AppID,
		TrackedMs: rec.TrackedFor.Milliseconds(),
		Success:   rec.Success,
		Error:     rec.Error,
		At:        rec.At.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode kick record: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.kicksKey, payload)
	pipe.LTrim(ctx, r.kicksKey, 0, maxRedisKicks-1)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentKicks returns up to limit records, newest first.
func (r *RedisPrefs) RecentKicks(limit int) ([]domain.KickRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	raw, err := r.client.LRange(ctx, r.kicksKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	records := make([]domain.KickRecord, 0, len(raw))
	for _, item := range raw {
		var k redisKick
		if err := json.Unmarshal([]byte(item), &k); err != nil {
			return nil, fmt.Errorf("failed to decode kick record: %w", err)
		}
		records = append(records, domain.KickRecord{
			ID:         k.ID,
			AppID:      k.AppID,
			TrackedFor: time.Duration(k.TrackedMs) * time.Millisecond,
			Success:    k.Success,
			Error:      k.Error,
			At:         time.UnixMilli(k.At),
		})
	}
	return records, nil
}

// Close closes the Redis client.
func (r *RedisPrefs) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

var _ domain.PrefsStore = (*RedisPrefs)(nil)
var _ domain.KickHistory = (*RedisPrefs)(nil)
