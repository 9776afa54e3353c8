package analyses

import (
	"context"
	"errors"
	"fmt"

	"review-backend/internal/shared/telemetry"
)

// MirroredRepo writes to Primary then Mirror. When the mirror write fails the
// primary is restored to its previous value so the two never diverge.
// Reads prefer the mirror and fall back to the primary.
type MirroredRepo struct {
	Primary Repo
	Mirror  Repo
}

func (m *MirroredRepo) Get(ctx context.Context, userID, fileName string) (Record, error) {
	rec, err := m.Mirror.Get(ctx, userID, fileName)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		telemetry.Warn("analysis.mirror.read_failed", map[string]any{"user_id": userID, "file_name": fileName, "error": err.Error()})
	}
	return m.Primary.Get(ctx, userID, fileName)
}

func (m *MirroredRepo) Put(ctx context.Context, rec Record) error {
	prev, hadPrev, err := m.previous(ctx, rec.UserID, rec.FileName)
	if err != nil {
		return err
	}
	if err := m.Primary.Put(ctx, rec); err != nil {
		return err
	}
	if err := m.Mirror.Put(ctx, rec); err != nil {
		m.restore(ctx, rec.UserID, rec.FileName, prev, hadPrev)
		return fmt.Errorf("mirror put: %w", err)
	}
	return nil
}

func (m *MirroredRepo) Delete(ctx context.Context, userID, fileName string) error {
	prev, hadPrev, err := m.previous(ctx, userID, fileName)
	if err != nil {
		return err
	}
	if err := m.Primary.Delete(ctx, userID, fileName); err != nil {
		return err
	}
	if err := m.Mirror.Delete(ctx, userID, fileName); err != nil && !errors.Is(err, ErrNotFound) {
		m.restore(ctx, userID, fileName, prev, hadPrev)
		return fmt.Errorf("mirror delete: %w", err)
	}
	return nil
}

func (m *MirroredRepo) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	recs, err := m.Mirror.ListByUser(ctx, userID)
	if err == nil {
		return recs, nil
	}
	telemetry.Warn("analysis.mirror.read_failed", map[string]any{"user_id": userID, "error": err.Error()})
	return m.Primary.ListByUser(ctx, userID)
}

func (m *MirroredRepo) previous(ctx context.Context, userID, fileName string) (Record, bool, error) {
	prev, err := m.Primary.Get(ctx, userID, fileName)
	if err == nil {
		return prev, true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return Record{}, false, nil
	}
	return Record{}, false, err
}

func (m *MirroredRepo) restore(ctx context.Context, userID, fileName string, prev Record, hadPrev bool) {
	var err error
	if hadPrev {
		err = m.Primary.Put(ctx, prev)
	} else {
		err = m.Primary.Delete(ctx, userID, fileName)
	}
	if err != nil {
		telemetry.Error("analysis.mirror.compensation_failed", map[string]any{
			"user_id":   userID,
			"file_name": fileName,
			"error":     err.Error(),
		})
	}
}
