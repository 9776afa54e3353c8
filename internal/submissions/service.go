package submissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"review-backend/internal/analyses"
	"review-backend/internal/documents"
	"review-backend/internal/extract"
	"review-backend/internal/queue"
	"review-backend/internal/shared/metrics"
	"review-backend/internal/shared/telemetry"
	"review-backend/internal/shared/util"
)

var (
	ErrRateLimited       = errors.New("submission rate limit reached")
	ErrDocumentExists    = errors.New("document already exists")
	ErrNoPreviousVersion = errors.New("no previous version to roll back to")
	ErrVersionConflict   = errors.New("version is not the latest")
	ErrInvalidUpload     = errors.New("invalid upload")
)

// Limiter gates submissions per user.
type Limiter interface {
	CheckAndAdmit(ctx context.Context, userID string) (bool, error)
	RecordAttempt(ctx context.Context, userID string) (bool, error)
}

// DocumentStore holds the uploaded document versions.
type DocumentStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType, courseID string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
	LatestVersion(ctx context.Context, userID, fileName string) (documents.Version, error)
}

// Estimator predicts the processing time in seconds.
type Estimator interface {
	EstimateSeconds(ctx context.Context, textLength int) (float64, error)
}

// Submitter enqueues a document version for analysis.
type Submitter interface {
	Submit(ctx context.Context, userID string, req queue.SubmissionRequest) (bool, error)
}

// Upload is a document posted by a student.
type Upload struct {
	UserID      string
	FileName    string
	Extension   string
	CourseID    string
	ContentType string
	Content     []byte
}

// Receipt is returned by every submission flow.
type Receipt struct {
	Accepted         bool    `json:"accepted"`
	EstimatedSeconds float64 `json:"estimatedSeconds"`
	Version          int     `json:"version"`
}

// Service implements the student-facing submission flows.
type Service struct {
	Limiter      Limiter
	Documents    DocumentStore
	Estimator    Estimator
	Orchestrator Submitter
	Analyses     analyses.Repo
}

// NewService constructs a Service.
func NewService(limiter Limiter, docs DocumentStore, est Estimator, orch Submitter, repo analyses.Repo) *Service {
	return &Service{Limiter: limiter, Documents: docs, Estimator: est, Orchestrator: orch, Analyses: repo}
}

// SubmitDocument stores and enqueues the first version of a new document.
func (s *Service) SubmitDocument(ctx context.Context, up Upload) (Receipt, error) {
	up, err := normalizeUpload(up)
	if err != nil {
		return Receipt{}, err
	}
	if _, err := s.Documents.LatestVersion(ctx, up.UserID, up.FileName); err == nil {
		metrics.IncSubmission("exists")
		return Receipt{}, ErrDocumentExists
	} else if !errors.Is(err, documents.ErrNotFound) {
		return Receipt{}, err
	}
	return s.submitUpload(ctx, up, 1)
}

// SubmitNewVersion stores and enqueues the next version of an existing
// document. The course is inherited from the latest version.
func (s *Service) SubmitNewVersion(ctx context.Context, up Upload) (Receipt, error) {
	up, err := normalizeUpload(up)
	if err != nil {
		return Receipt{}, err
	}
	latest, err := s.Documents.LatestVersion(ctx, up.UserID, up.FileName)
	if err != nil {
		return Receipt{}, err
	}
	up.CourseID = latest.CourseID
	return s.submitUpload(ctx, up, latest.Number+1)
}

func (s *Service) submitUpload(ctx context.Context, up Upload, version int) (Receipt, error) {
	if err := s.admit(ctx, up.UserID); err != nil {
		return Receipt{}, err
	}

	text, err := extract.ExtractText(ctx, up.Content, up.ContentType)
	if err != nil {
		metrics.IncSubmission("rejected")
		return Receipt{}, err
	}

	key := documents.FileKey(up.UserID, up.FileName, version, up.Extension)
	if err := s.Documents.Upload(ctx, key, up.Content, up.ContentType, up.CourseID); err != nil {
		return Receipt{}, err
	}

	estimate, err := s.Estimator.EstimateSeconds(ctx, extract.TextLength(text))
	if err != nil {
		s.discard(ctx, key)
		return Receipt{}, fmt.Errorf("estimate processing time: %w", err)
	}

	req := queue.SubmissionRequest{
		UserID:    up.UserID,
		FileName:  up.FileName,
		Version:   version,
		Extension: up.Extension,
		CourseID:  up.CourseID,
	}
	if err := s.enqueue(ctx, req); err != nil {
		s.discard(ctx, key)
		return Receipt{}, err
	}
	s.record(ctx, up.UserID)
	return Receipt{Accepted: true, EstimatedSeconds: estimate, Version: version}, nil
}

// Reprocess enqueues the latest stored version of fileName again.
func (s *Service) Reprocess(ctx context.Context, userID, fileName string) (Receipt, error) {
	userID, fileName = strings.TrimSpace(userID), strings.TrimSpace(fileName)
	if err := s.admit(ctx, userID); err != nil {
		return Receipt{}, err
	}
	latest, err := s.Documents.LatestVersion(ctx, userID, fileName)
	if err != nil {
		return Receipt{}, err
	}
	key := documents.FileKey(userID, fileName, latest.Number, latest.Extension)
	data, contentType, err := s.Documents.Download(ctx, key)
	if err != nil {
		return Receipt{}, err
	}
	text, err := extract.ExtractText(ctx, data, contentType)
	if err != nil {
		metrics.IncSubmission("rejected")
		return Receipt{}, err
	}
	estimate, err := s.Estimator.EstimateSeconds(ctx, extract.TextLength(text))
	if err != nil {
		return Receipt{}, fmt.Errorf("estimate processing time: %w", err)
	}

	if err := s.enqueue(ctx, queue.SubmissionRequest{
		UserID:    userID,
		FileName:  fileName,
		Version:   latest.Number,
		Extension: latest.Extension,
		CourseID:  latest.CourseID,
	}); err != nil {
		return Receipt{}, err
	}
	s.record(ctx, userID)
	return Receipt{Accepted: true, EstimatedSeconds: estimate, Version: latest.Number}, nil
}

// Rollback deletes currentVersion, which must be the latest version and
// greater than one, together with its analysis.
func (s *Service) Rollback(ctx context.Context, userID, fileName string, currentVersion int) (Receipt, error) {
	if currentVersion <= 1 {
		return Receipt{}, ErrNoPreviousVersion
	}
	userID, fileName = strings.TrimSpace(userID), strings.TrimSpace(fileName)
	latest, err := s.Documents.LatestVersion(ctx, userID, fileName)
	if err != nil {
		return Receipt{}, err
	}
	if latest.Number != currentVersion {
		return Receipt{}, fmt.Errorf("%w: latest is %d", ErrVersionConflict, latest.Number)
	}

	if err := s.Documents.Delete(ctx, documents.FileKey(userID, fileName, currentVersion, latest.Extension)); err != nil {
		return Receipt{}, err
	}
	versioned := documents.VersionedName(fileName, currentVersion, latest.Extension)
	if err := s.Analyses.Delete(ctx, userID, versioned); err != nil && !errors.Is(err, analyses.ErrNotFound) {
		return Receipt{}, fmt.Errorf("delete analysis %s: %w", versioned, err)
	}
	telemetry.Info("submission.rollback", map[string]any{
		"user_id":   userID,
		"file_name": fileName,
		"removed":   currentVersion,
	})
	return Receipt{Accepted: true, Version: currentVersion - 1}, nil
}

func (s *Service) admit(ctx context.Context, userID string) error {
	ok, err := s.Limiter.CheckAndAdmit(ctx, userID)
	if err != nil {
		return fmt.Errorf("check rate limit: %w", err)
	}
	if !ok {
		metrics.IncSubmission("rate_limited")
		telemetry.Info("submission.rate_limited", map[string]any{"user_id": userID})
		return ErrRateLimited
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, req queue.SubmissionRequest) error {
	ok, err := s.Orchestrator.Submit(ctx, req.UserID, req)
	if err != nil {
		metrics.IncSubmission("enqueue_failed")
		return fmt.Errorf("enqueue submission: %w", err)
	}
	if !ok {
		metrics.IncSubmission("enqueue_failed")
		return errors.New("enqueue submission: not accepted")
	}
	metrics.IncSubmission("accepted")
	return nil
}

// record counts an accepted submission. The item is already queued, so a
// failure is only logged.
func (s *Service) record(ctx context.Context, userID string) {
	ok, err := s.Limiter.RecordAttempt(ctx, userID)
	if err != nil || !ok {
		fields := map[string]any{"user_id": userID, "recorded": ok}
		if err != nil {
			fields["error"] = err.Error()
		}
		telemetry.Warn("submission.record_attempt_failed", fields)
	}
}

func (s *Service) discard(ctx context.Context, key string) {
	if err := s.Documents.Delete(ctx, key); err != nil {
		telemetry.Warn("submission.discard_failed", map[string]any{"key": key, "error": err.Error()})
	}
}

func normalizeUpload(up Upload) (Upload, error) {
	up.UserID = strings.TrimSpace(up.UserID)
	if up.UserID == "" {
		return Upload{}, fmt.Errorf("%w: user id is required", ErrInvalidUpload)
	}
	name, err := util.SanitizeFileName(up.FileName)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	up.FileName = name
	up.Extension = documents.NormalizeExtension(up.Extension)
	if up.Extension == "" {
		return Upload{}, fmt.Errorf("%w: extension is required", ErrInvalidUpload)
	}
	up.CourseID = strings.TrimSpace(up.CourseID)
	return up, nil
}
