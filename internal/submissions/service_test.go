package submissions

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"review-backend/internal/analyses"
	"review-backend/internal/documents"
	"review-backend/internal/estimator"
	"review-backend/internal/extract"
	"review-backend/internal/queue"
	"review-backend/internal/ratelimit"
	"review-backend/internal/settings"
	"review-backend/internal/shared/storage/object/local"
)

type recordingSubmitter struct {
	reqs []queue.SubmissionRequest
	err  error
}

func (r *recordingSubmitter) Submit(ctx context.Context, userID string, req queue.SubmissionRequest) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	r.reqs = append(r.reqs, req)
	return true, nil
}

type fixture struct {
	svc     *Service
	limiter *ratelimit.Limiter
	docs    *documents.Store
	repo    *analyses.MemoryRepo
	queue   *recordingSubmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	settingsSvc := settings.NewService(settings.NewMemoryStore(), settings.DefaultDefaults())
	f := &fixture{
		limiter: ratelimit.NewLimiter(ratelimit.NewMemoryStore(), settingsSvc),
		docs:    documents.NewStore(local.New(t.TempDir())),
		repo:    analyses.NewMemoryRepo(),
		queue:   &recordingSubmitter{},
	}
	f.svc = NewService(f.limiter, f.docs, estimator.New(estimator.NewMemoryHistory(), 0, 0), f.queue, f.repo)
	return f
}

func textUpload(name, course string) Upload {
	return Upload{
		UserID:      "u1",
		FileName:    name,
		Extension:   "txt",
		CourseID:    course,
		ContentType: "text/plain",
		Content:     []byte("an essay about the water cycle"),
	}
}

func (f *fixture) attempts(t *testing.T) int {
	t.Helper()
	st, err := f.limiter.Status(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	return st.AttemptCount
}

func TestSubmitDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	receipt, err := f.svc.SubmitDocument(ctx, textUpload("essay", "c1"))
	if err != nil {
		t.Fatalf("SubmitDocument: %v", err)
	}
	if !receipt.Accepted || receipt.Version != 1 || receipt.EstimatedSeconds <= 0 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if len(f.queue.reqs) != 1 || f.queue.reqs[0].CourseID != "c1" || f.queue.reqs[0].Extension != "txt" {
		t.Fatalf("unexpected enqueued requests %+v", f.queue.reqs)
	}
	if f.attempts(t) != 1 {
		t.Fatalf("expected one recorded attempt")
	}

	if _, err := f.svc.SubmitDocument(ctx, textUpload("essay", "c1")); !errors.Is(err, ErrDocumentExists) {
		t.Fatalf("expected ErrDocumentExists, got %v", err)
	}
}

func TestSubmitRateLimitedTouchesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, name := range []string{"a", "b"} {
		if _, err := f.svc.SubmitDocument(ctx, textUpload(name, "")); err != nil {
			t.Fatalf("SubmitDocument(%s): %v", name, err)
		}
	}
	if _, err := f.svc.SubmitDocument(ctx, textUpload("c", "")); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if _, err := f.docs.LatestVersion(ctx, "u1", "c"); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected nothing uploaded, got %v", err)
	}
	if len(f.queue.reqs) != 2 {
		t.Fatalf("expected nothing enqueued, got %d requests", len(f.queue.reqs))
	}
	if recs, _ := f.repo.ListByUser(ctx, "u1"); len(recs) != 0 {
		t.Fatalf("expected no analysis records, got %+v", recs)
	}
	if f.attempts(t) != 2 {
		t.Fatalf("expected attempt count to stay at 2")
	}
}

func TestSubmitNewVersionInheritsCourse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.SubmitNewVersion(ctx, textUpload("essay", "c1")); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing document, got %v", err)
	}
	if _, err := f.svc.SubmitDocument(ctx, textUpload("essay", "c1")); err != nil {
		t.Fatalf("SubmitDocument: %v", err)
	}
	receipt, err := f.svc.SubmitNewVersion(ctx, textUpload("essay", "other"))
	if err != nil {
		t.Fatalf("SubmitNewVersion: %v", err)
	}
	if receipt.Version != 2 {
		t.Fatalf("expected version 2, got %d", receipt.Version)
	}
	last := f.queue.reqs[len(f.queue.reqs)-1]
	if last.Version != 2 || last.CourseID != "c1" {
		t.Fatalf("expected v2 in course c1, got %+v", last)
	}
}

func TestSubmitRejectsUnsupportedContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	up := textUpload("scan", "")
	up.Extension = "png"
	up.ContentType = "image/png"

	if _, err := f.svc.SubmitDocument(ctx, up); !errors.Is(err, extract.ErrUnsupportedContentType) {
		t.Fatalf("expected ErrUnsupportedContentType, got %v", err)
	}
	if len(f.queue.reqs) != 0 || f.attempts(t) != 0 {
		t.Fatalf("expected nothing enqueued or recorded")
	}
	if _, err := f.docs.LatestVersion(ctx, "u1", "scan"); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected nothing uploaded, got %v", err)
	}
}

func TestSubmitEnqueueFailureDiscardsUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.queue.err = errors.New("queue down")

	if _, err := f.svc.SubmitDocument(ctx, textUpload("essay", "")); err == nil {
		t.Fatalf("expected enqueue error")
	}
	if _, err := f.docs.LatestVersion(ctx, "u1", "essay"); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected upload to be discarded, got %v", err)
	}
	if f.attempts(t) != 0 {
		t.Fatalf("expected no recorded attempt")
	}
}

func TestReprocessAndRollback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.SubmitDocument(ctx, textUpload("essay", "c1")); err != nil {
		t.Fatalf("SubmitDocument: %v", err)
	}
	if _, err := f.svc.Rollback(ctx, "u1", "essay", 1); !errors.Is(err, ErrNoPreviousVersion) {
		t.Fatalf("expected ErrNoPreviousVersion, got %v", err)
	}
	if _, err := f.svc.SubmitNewVersion(ctx, textUpload("essay", "")); err != nil {
		t.Fatalf("SubmitNewVersion: %v", err)
	}
	if err := f.repo.Put(ctx, analyses.Record{UserID: "u1", FileName: "essay_v2.txt", Status: analyses.StatusAnalyzed, Score: 6}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := f.svc.Rollback(ctx, "u1", "essay", 3); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	receipt, err := f.svc.Rollback(ctx, "u1", "essay", 2)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if receipt.Version != 1 {
		t.Fatalf("expected to roll back to v1, got %+v", receipt)
	}
	latest, err := f.docs.LatestVersion(ctx, "u1", "essay")
	if err != nil || latest.Number != 1 {
		t.Fatalf("expected v1 to be latest, got %+v err=%v", latest, err)
	}
	if _, err := f.repo.Get(ctx, "u1", "essay_v2.txt"); !errors.Is(err, analyses.ErrNotFound) {
		t.Fatalf("expected v2 analysis to be deleted, got %v", err)
	}

	// Both attempts of the window are used, so reprocessing is denied.
	if _, err := f.svc.Reprocess(ctx, "u1", "essay"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestReprocessEnqueuesLatest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.svc.SubmitDocument(ctx, textUpload("essay", "c1")); err != nil {
		t.Fatalf("SubmitDocument: %v", err)
	}
	receipt, err := f.svc.Reprocess(ctx, "u1", "essay")
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if receipt.Version != 1 || len(f.queue.reqs) != 2 || f.queue.reqs[1].CourseID != "c1" {
		t.Fatalf("unexpected reprocess %+v %+v", receipt, f.queue.reqs)
	}
}

func multipartBody(t *testing.T, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.WriteField("courseId", "c1"); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return buf, w.FormDataContentType()
}

func TestHandlerSubmitStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	r := gin.New()
	NewHandler(f.svc, f.limiter).RegisterRoutes(r.Group("/api/v1"))

	post := func(fileName string) int {
		body, ct := multipartBody(t, fileName, "some text to review")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/documents", body)
		req.Header.Set("Content-Type", ct)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		return resp.Code
	}

	if code := post("essay.txt"); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if code := post("essay.txt"); code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", code)
	}
	if code := post("image.png"); code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", code)
	}
	if code := post("notes.txt"); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if code := post("more.txt"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/rate-limit", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if f.queue.reqs[0].CourseID != "c1" || f.queue.reqs[0].FileName != "essay" {
		t.Fatalf("unexpected request %+v", f.queue.reqs[0])
	}
}
