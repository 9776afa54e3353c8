package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = errors.New("object not found")

// Object is a stored blob plus the metadata recorded at upload time.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Metadata    map[string]string
}

// Store defines the contract for saving and retrieving binary objects by deterministic key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, metadata map[string]string) (int64, error)
	Get(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}
