package settings

import "context"

// Store persists settings as one JSON document per key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// PutIfAbsent writes value only when key has no value yet.
	PutIfAbsent(ctx context.Context, key string, value []byte) error
}
