package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultKeyPrefix = "fitbot:session:"

// RedisStore keeps sessions as JSON values whose key TTL is the retention period.
type RedisStore struct {
	client    redis.Cmdable
	prefix    string
	retention time.Duration
}

// NewRedisStore wraps client. An empty prefix selects the default namespace.
func NewRedisStore(client redis.Cmdable, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, retention: retention}
}

func (r *RedisStore) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

// Load fetches and decodes the session; a missing key is not an error.
func (r *RedisStore) Load(ctx context.Context, userID int64) (Session, bool, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return s, true, nil
}

// Save encodes s and refreshes the key TTL.
func (r *RedisStore) Save(ctx context.Context, userID int64, s Session) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := r.retention
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear deletes the session key.
func (r *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
