package crl

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore persists CRL state under the "crldata.<url>" / "downloaded.<url>"
// key layout: the raw DER blob and an RFC 3339 nano timestamp, each with no
// expiry since a CRL is meant to persist across restarts until replaced by
// the next successful refresh.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-configured redis.Client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func dataKey(url string) string       { return "crldata." + url }
func downloadedKey(url string) string { return "downloaded." + url }

func (s *RedisStore) SaveCRL(ctx context.Context, url string, data []byte, downloaded time.Time) error {
	if err := s.client.Set(ctx, dataKey(url), data, 0).Err(); err != nil {
		return fmt.Errorf("crl: redis SET %s: %w", dataKey(url), err)
	}
	ts := downloaded.UTC().Format(time.RFC3339Nano)
	if err := s.client.Set(ctx, downloadedKey(url), ts, 0).Err(); err != nil {
		return fmt.Errorf("crl: redis SET %s: %w", downloadedKey(url), err)
	}
	return nil
}

func (s *RedisStore) LoadCRL(ctx context.Context, url string) ([]byte, time.Time, bool, error) {
	data, err := s.client.Get(ctx, dataKey(url)).Bytes()
	if err == redis.Nil {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("crl: redis GET %s: %w", dataKey(url), err)
	}
	ts, err := s.client.Get(ctx, downloadedKey(url)).Result()
	if err != nil && err != redis.Nil {
		return nil, time.Time{}, false, fmt.Errorf("crl: redis GET %s: %w", downloadedKey(url), err)
	}
	var downloaded time.Time
	if ts != "" {
		downloaded, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, time.Time{}, false, fmt.Errorf("crl: parsing %s: %w", downloadedKey(url), err)
		}
	}
	return data, downloaded, true, nil
}
