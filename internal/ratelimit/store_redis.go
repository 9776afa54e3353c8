package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisMaxRetries = 10

// RedisStore keeps rate-limit state in a Redis hash per user and serializes
// updates with WATCH/MULTI.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a RedisStore. Keys are "{prefix}{userID}".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisStore) Get(ctx context.Context, userID string) (State, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return State{}, false, err
	}
	return decodeState(fields)
}

func (s *RedisStore) Update(ctx context.Context, userID string, fn UpdateFunc) error {
	key := s.key(userID)
	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		cur, exists, err := decodeState(fields)
		if err != nil {
			return err
		}
		next, write := fn(cur, exists)
		if !write {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"count", next.AttemptCount,
				"start", next.WindowStart.UTC().UnixNano(),
			)
			return nil
		})
		return err
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("rate limit update %s: too much contention", userID)
}

func decodeState(fields map[string]string) (State, bool, error) {
	if len(fields) == 0 {
		return State{}, false, nil
	}
	count, err := strconv.Atoi(fields["count"])
	if err != nil {
		return State{}, false, fmt.Errorf("decode count: %w", err)
	}
	start, err := strconv.ParseInt(fields["start"], 10, 64)
	if err != nil {
		return State{}, false, fmt.Errorf("decode start: %w", err)
	}
	return State{AttemptCount: count, WindowStart: time.Unix(0, start).UTC()}, true, nil
}
