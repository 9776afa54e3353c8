package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisRepo keeps a user's records in the hash "analyses:{userID}", one JSON
// value per file name.
type RedisRepo struct {
	client *redis.Client
}

// NewRedisRepo constructs a RedisRepo.
func NewRedisRepo(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client}
}

func userKey(userID string) string {
	return "analyses:" + userID
}

func (r *RedisRepo) Get(ctx context.Context, userID, fileName string) (Record, error) {
	raw, err := r.client.HGet(ctx, userKey(userID), fileName).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode analysis %s/%s: %w", userID, fileName, err)
	}
	return rec, nil
}

func (r *RedisRepo) Put(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	rec = normalize(rec, time.Now())
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, userKey(rec.UserID), rec.FileName, raw).Err()
}

func (r *RedisRepo) Delete(ctx context.Context, userID, fileName string) error {
	n, err := r.client.HDel(ctx, userKey(userID), fileName).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisRepo) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	all, err := r.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(all))
	for fileName, raw := range all {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode analysis %s/%s: %w", userID, fileName, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
