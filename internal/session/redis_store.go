package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists sessions in Redis so pending operations survive a
// restart. Expiry uses native TTLs; a zero TTL keeps sessions forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a Redis-backed session store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(identity int64) string {
	return fmt.Sprintf("session:%d", identity)
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, identity int64) (*Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(identity)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get session %d: %w", identity, err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", identity, err)
	}
	return &sess, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %d: %w", sess.Identity, err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.Identity), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %d: %w", sess.Identity, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, identity int64) error {
	if err := s.client.Del(ctx, sessionKey(identity)).Err(); err != nil {
		return fmt.Errorf("redis delete session %d: %w", identity, err)
	}
	return nil
}
