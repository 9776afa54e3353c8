package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"review-backend/internal/aggregator"
	"review-backend/internal/analyses"
	"review-backend/internal/documents"
	"review-backend/internal/estimator"
	"review-backend/internal/extract"
	"review-backend/internal/llm"
	"review-backend/internal/queue"
	"review-backend/internal/settings"
	"review-backend/internal/shared/metrics"
	"review-backend/internal/shared/telemetry"
)

const (
	failureDocument    = "document_unavailable"
	failureUnsupported = "unsupported_content_type"
	failureEmpty       = "empty_document"
	failureModel       = "unknown_model"
	failurePrompt      = "prompt_too_large"
	failurePanic       = "panic"
	failureInternal    = "internal_error"
)

// DocumentSource downloads stored document versions.
type DocumentSource interface {
	Download(ctx context.Context, key string) ([]byte, string, error)
}

// Analyzer scores extracted text.
type Analyzer interface {
	Analyze(ctx context.Context, text string, ms settings.ModelSettings) (aggregator.Result, error)
}

// ModelSettingsSource returns the current model settings.
type ModelSettingsSource interface {
	GetModelSettings(ctx context.Context) (settings.ModelSettings, error)
}

// SampleLogger records observed processing times.
type SampleLogger interface {
	LogSample(ctx context.Context, textLength int, elapsed time.Duration) error
}

// Processor takes one submission from IN_PROGRESS to ANALYZED or NOT_ANALYZED.
type Processor struct {
	Documents DocumentSource
	Analyses  analyses.Repo
	Analyzer  Analyzer
	Settings  ModelSettingsSource
	Samples   SampleLogger

	now func() time.Time
}

// NewProcessor constructs a Processor.
func NewProcessor(docs DocumentSource, repo analyses.Repo, analyzer Analyzer, ms ModelSettingsSource, samples SampleLogger) *Processor {
	return &Processor{Documents: docs, Analyses: repo, Analyzer: analyzer, Settings: ms, Samples: samples, now: time.Now}
}

type outcome struct {
	result     aggregator.Result
	textLength int
}

// Process runs req through the pipeline. It returns nil once a terminal record
// is stored, and an error when the item must be delivered again: either the
// IN_PROGRESS marker or both terminal writes failed.
func (p *Processor) Process(ctx context.Context, req queue.SubmissionRequest) error {
	startedAt := p.clock()
	fileName := documents.VersionedName(req.FileName, req.Version, req.Extension)
	fields := map[string]any{
		"request_id": req.RequestID,
		"user_id":    req.UserID,
		"file_name":  fileName,
	}

	if err := p.Analyses.Put(ctx, analyses.Record{
		UserID:    req.UserID,
		FileName:  fileName,
		Status:    analyses.StatusInProgress,
		CourseID:  req.CourseID,
		Timestamp: startedAt,
	}); err != nil {
		return fmt.Errorf("mark in progress %s/%s: %w", req.UserID, fileName, err)
	}
	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", withFields(fields, map[string]any{
		"status":            analyses.StatusInProgress,
		"status_transition": "queued->in_progress",
	}))

	out, err := p.run(ctx, req)
	completedAt := p.clock()
	elapsed := completedAt.Sub(startedAt)
	if err != nil {
		return p.failAnalysis(ctx, req, fileName, err, elapsed, fields)
	}

	if err := p.Analyses.Put(ctx, analyses.Record{
		UserID:                req.UserID,
		FileName:              fileName,
		Status:                analyses.StatusAnalyzed,
		Score:                 out.result.Score,
		PotentialImprovements: out.result.Improvements,
		References:            out.result.References,
		ProcessTimeSeconds:    estimator.Round2(elapsed.Seconds()),
		CourseID:              req.CourseID,
		Timestamp:             completedAt,
	}); err != nil {
		return p.failAnalysis(ctx, req, fileName, fmt.Errorf("store analysis result: %w", err), elapsed, fields)
	}

	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(elapsed))
	telemetry.Info("analysis.status", withFields(fields, map[string]any{
		"status":            analyses.StatusAnalyzed,
		"status_transition": "in_progress->analyzed",
		"score":             out.result.Score,
		"chunks":            out.result.ChunkCount,
		"scored_chunks":     out.result.ScoredChunks,
		"duration_ms":       durationMs(elapsed),
	}))

	if p.Samples != nil {
		if err := p.Samples.LogSample(ctx, out.textLength, elapsed); err != nil {
			telemetry.Warn("estimator.sample.failed", withFields(fields, map[string]any{"error": sanitizeError(err)}))
		}
	}
	return nil
}

// run downloads, extracts and analyzes. Panics become errors.
func (p *Processor) run(ctx context.Context, req queue.SubmissionRequest) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", failurePanic, r)
		}
	}()

	key := documents.FileKey(req.UserID, req.FileName, req.Version, req.Extension)
	data, contentType, err := p.Documents.Download(ctx, key)
	if err != nil {
		return outcome{}, err
	}
	text, err := extract.ExtractText(ctx, data, contentType)
	if err != nil {
		return outcome{}, fmt.Errorf("document %s content type %s: %w", key, contentType, err)
	}
	ms, err := p.Settings.GetModelSettings(ctx)
	if err != nil {
		return outcome{}, fmt.Errorf("load model settings: %w", err)
	}
	res, err := p.Analyzer.Analyze(ctx, text, ms)
	if err != nil {
		return outcome{}, err
	}
	return outcome{result: res, textLength: extract.TextLength(text)}, nil
}

func (p *Processor) failAnalysis(ctx context.Context, req queue.SubmissionRequest, fileName string, cause error, elapsed time.Duration, fields map[string]any) error {
	metrics.IncAnalysisFailed()
	metrics.ObserveAnalysisDurationMs(durationMs(elapsed))

	err := p.Analyses.Put(ctx, analyses.Record{
		UserID:             req.UserID,
		FileName:           fileName,
		Status:             analyses.StatusNotAnalyzed,
		ProcessTimeSeconds: estimator.Round2(elapsed.Seconds()),
		CourseID:           req.CourseID,
		Timestamp:          p.clock(),
	})
	telemetry.Info("analysis.status", withFields(fields, map[string]any{
		"status":            analyses.StatusNotAnalyzed,
		"status_transition": "in_progress->not_analyzed",
		"failure_code":      classifyFailure(cause),
		"error":             sanitizeError(cause),
		"duration_ms":       durationMs(elapsed),
	}))
	if err != nil {
		telemetry.Error("analysis.status.write_failed", withFields(fields, map[string]any{"error": sanitizeError(err)}))
		return fmt.Errorf("store terminal status %s/%s: %w", req.UserID, fileName, err)
	}
	return nil
}

func (p *Processor) clock() time.Time {
	if p.now == nil {
		return time.Now().UTC()
	}
	return p.now().UTC()
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func classifyFailure(err error) string {
	switch {
	case err == nil:
		return failureInternal
	case errors.Is(err, documents.ErrNotFound):
		return failureDocument
	case errors.Is(err, extract.ErrUnsupportedContentType):
		return failureUnsupported
	case errors.Is(err, extract.ErrEmptyDocument):
		return failureEmpty
	case errors.Is(err, llm.ErrUnknownModel):
		return failureModel
	case errors.Is(err, extract.ErrPromptTooLarge):
		return failurePrompt
	case strings.HasPrefix(err.Error(), failurePanic+":"):
		return failurePanic
	}
	return failureInternal
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

func withFields(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
