package analyses

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores records in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byUser map[string]map[string]Record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byUser: make(map[string]map[string]Record)}
}

// Get returns the record for (userID, fileName).
func (r *MemoryRepo) Get(ctx context.Context, userID, fileName string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byUser[userID][fileName]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Put upserts rec.
func (r *MemoryRepo) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(rec); err != nil {
		return err
	}
	rec = normalize(rec, time.Now())
	r.mu.Lock()
	defer r.mu.Unlock()
	files, ok := r.byUser[rec.UserID]
	if !ok {
		files = make(map[string]Record)
		r.byUser[rec.UserID] = files
	}
	files[rec.FileName] = rec
	return nil
}

// Delete removes the record for (userID, fileName).
func (r *MemoryRepo) Delete(ctx context.Context, userID, fileName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[userID][fileName]; !ok {
		return ErrNotFound
	}
	delete(r.byUser[userID], fileName)
	return nil
}

// ListByUser returns every record of userID in no particular order.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.byUser[userID]))
	for _, rec := range r.byUser[userID] {
		out = append(out, rec)
	}
	return out, nil
}
