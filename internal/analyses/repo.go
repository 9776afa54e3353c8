package analyses

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no record for the (user, file) key.
	ErrNotFound = errors.New("analysis not found")
	// ErrInvalidStatus rejects records outside the three states.
	ErrInvalidStatus = errors.New("invalid analysis status")
)

// Repo persists analysis records keyed by (UserID, FileName). Put is an upsert.
type Repo interface {
	Get(ctx context.Context, userID, fileName string) (Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, userID, fileName string) error
	ListByUser(ctx context.Context, userID string) ([]Record, error)
}

func validate(rec Record) error {
	if rec.UserID == "" || rec.FileName == "" {
		return fmt.Errorf("analysis key requires user id and file name")
	}
	if !ValidStatus(rec.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, rec.Status)
	}
	return nil
}
