package ratelimit

import (
	"context"
	"time"

	"review-backend/internal/settings"
)

// State is the per-user attempt counter for the current window.
type State struct {
	AttemptCount int       `json:"attemptCount"`
	WindowStart  time.Time `json:"windowStart"`
}

// Status is the caller-facing view of a user's window.
type Status struct {
	AttemptCount int       `json:"attemptCount"`
	MaxAttempts  int       `json:"maxAttempts"`
	Remaining    int       `json:"remaining"`
	WindowStart  time.Time `json:"windowStart,omitempty"`
	ResetsAt     time.Time `json:"resetsAt,omitempty"`
}

// UpdateFunc receives the current state (exists=false when absent) and returns
// the next state and whether it should be written.
type UpdateFunc func(cur State, exists bool) (next State, write bool)

// Store persists rate-limit state. Update must be an atomic read-modify-write per user.
type Store interface {
	Get(ctx context.Context, userID string) (State, bool, error)
	Update(ctx context.Context, userID string, fn UpdateFunc) error
}

// SettingsSource provides the rate-limit settings; they are read on every check.
type SettingsSource interface {
	GetRateLimitSettings(ctx context.Context) (settings.RateLimitSettings, error)
}
