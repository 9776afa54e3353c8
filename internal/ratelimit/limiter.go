package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Limiter gates submissions per user with a fixed window that starts on the
// first check after the previous window elapsed.
type Limiter struct {
	store    Store
	settings SettingsSource
	now      func() time.Time
}

// NewLimiter constructs a Limiter.
func NewLimiter(store Store, settings SettingsSource) *Limiter {
	return &Limiter{store: store, settings: settings, now: func() time.Time { return time.Now().UTC() }}
}

// CheckAndAdmit reports whether userID may submit now. It never increments the
// counter; callers record the attempt once the submission is enqueued.
func (l *Limiter) CheckAndAdmit(ctx context.Context, userID string) (bool, error) {
	cfg, err := l.settings.GetRateLimitSettings(ctx)
	if err != nil {
		return false, fmt.Errorf("rate limit settings: %w", err)
	}
	interval := cfg.Interval()
	now := l.now()

	allowed := false
	err = l.store.Update(ctx, userID, func(cur State, exists bool) (State, bool) {
		if !exists || now.Sub(cur.WindowStart) >= interval {
			allowed = true
			return State{AttemptCount: 0, WindowStart: now}, true
		}
		allowed = cur.AttemptCount < cfg.MaxAttempts
		return cur, false
	})
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}
	return allowed, nil
}

// RecordAttempt increments the counter for an existing window. It returns false
// when the user has no state, which only happens if CheckAndAdmit was skipped.
func (l *Limiter) RecordAttempt(ctx context.Context, userID string) (bool, error) {
	recorded := false
	err := l.store.Update(ctx, userID, func(cur State, exists bool) (State, bool) {
		if !exists {
			return cur, false
		}
		recorded = true
		cur.AttemptCount++
		return cur, true
	})
	if err != nil {
		return false, fmt.Errorf("rate limit record: %w", err)
	}
	return recorded, nil
}

// Status returns the user's window without modifying it.
func (l *Limiter) Status(ctx context.Context, userID string) (Status, error) {
	cfg, err := l.settings.GetRateLimitSettings(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("rate limit settings: %w", err)
	}
	st, exists, err := l.store.Get(ctx, userID)
	if err != nil {
		return Status{}, fmt.Errorf("rate limit status: %w", err)
	}

	out := Status{MaxAttempts: cfg.MaxAttempts, Remaining: cfg.MaxAttempts}
	if !exists || l.now().Sub(st.WindowStart) >= cfg.Interval() {
		return out, nil
	}
	out.AttemptCount = st.AttemptCount
	out.WindowStart = st.WindowStart
	out.ResetsAt = st.WindowStart.Add(cfg.Interval())
	out.Remaining = cfg.MaxAttempts - st.AttemptCount
	if out.Remaining < 0 {
		out.Remaining = 0
	}
	return out, nil
}
