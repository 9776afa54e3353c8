package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"review-backend/internal/analyses"
	"review-backend/internal/queue"
	"review-backend/internal/settings"
	"review-backend/internal/shared/telemetry"
)

// Summarizer condenses suggestions into a common-mistakes report.
type Summarizer interface {
	SummarizeSuggestions(ctx context.Context, items []analyses.Improvement, ms settings.ModelSettings) (string, error)
}

// Settings bundles both settings entities.
type Settings struct {
	Model     settings.ModelSettings     `json:"model"`
	RateLimit settings.RateLimitSettings `json:"rateLimit"`
}

// Orchestrator is the entry point for submissions and pipeline settings.
type Orchestrator struct {
	Router     *queue.Router
	Settings   *settings.Service
	Analyses   *analyses.Service
	Summarizer Summarizer

	now func() time.Time
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(router *queue.Router, settingsSvc *settings.Service, analysesSvc *analyses.Service, summarizer Summarizer) *Orchestrator {
	return &Orchestrator{Router: router, Settings: settingsSvc, Analyses: analysesSvc, Summarizer: summarizer, now: time.Now}
}

// Submit durably enqueues req for userID on the owning partition. It returns
// as soon as the item is stored, not when analysis completes.
func (o *Orchestrator) Submit(ctx context.Context, userID string, req queue.SubmissionRequest) (bool, error) {
	req.UserID = strings.TrimSpace(userID)
	if req.UserID == "" {
		return false, fmt.Errorf("submit: user id is required")
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	now := time.Now
	if o.now != nil {
		now = o.now
	}
	req.EnqueuedAt = now().UTC().Format(time.RFC3339Nano)

	partition, err := o.Router.Send(ctx, req)
	if err != nil {
		telemetry.Error("pipeline.item.enqueue_failed", map[string]any{
			"request_id": req.RequestID,
			"user_id":    req.UserID,
			"partition":  partition,
			"error":      sanitizeError(err),
		})
		return false, err
	}
	telemetry.Info("pipeline.item.enqueued", map[string]any{
		"request_id": req.RequestID,
		"user_id":    req.UserID,
		"file_name":  req.FileName,
		"version":    req.Version,
		"partition":  partition,
	})
	return true, nil
}

// EnsureDefaults seeds model and rate-limit settings when absent.
func (o *Orchestrator) EnsureDefaults(ctx context.Context) error {
	return o.Settings.EnsureDefaults(ctx)
}

// GetSettings returns both settings entities.
func (o *Orchestrator) GetSettings(ctx context.Context) (Settings, error) {
	ms, err := o.Settings.GetModelSettings(ctx)
	if err != nil {
		return Settings{}, err
	}
	rl, err := o.Settings.GetRateLimitSettings(ctx)
	if err != nil {
		return Settings{}, err
	}
	return Settings{Model: ms, RateLimit: rl}, nil
}

// UpdateSettings validates and stores both settings entities.
func (o *Orchestrator) UpdateSettings(ctx context.Context, in Settings) (Settings, error) {
	ms, err := o.Settings.UpdateModelSettings(ctx, in.Model)
	if err != nil {
		return Settings{}, err
	}
	rl, err := o.Settings.UpdateRateLimitSettings(ctx, in.RateLimit)
	if err != nil {
		return Settings{}, err
	}
	return Settings{Model: ms, RateLimit: rl}, nil
}

// CommonMistakes summarizes the suggestions across a user's analyzed documents.
func (o *Orchestrator) CommonMistakes(ctx context.Context, userID string) (string, error) {
	items, err := o.Analyses.Improvements(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", analyses.ErrNothingToSummarize
	}
	ms, err := o.Settings.GetModelSettings(ctx)
	if err != nil {
		return "", err
	}
	return o.Summarizer.SummarizeSuggestions(ctx, items, ms)
}
