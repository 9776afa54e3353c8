package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"review-backend/internal/analyses"
	"review-backend/internal/shared/config"
	"review-backend/internal/submissions"
	"review-backend/internal/workerproc"
)

func buildMemoryApp(t *testing.T) *App {
	t.Helper()
	app, err := Build(context.Background(), config.Config{
		Env:             "dev",
		LocalStoreDir:   t.TempDir(),
		QueueBackend:    "memory",
		QueuePartitions: 2,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestBuildInMemoryWiresEveryService(t *testing.T) {
	app := buildMemoryApp(t)

	if app.DB != nil || app.Redis != nil {
		t.Fatalf("expected no external connections")
	}
	if len(app.Queues) != 2 || len(app.Workers()) != 2 {
		t.Fatalf("expected two partitions, got %d queues", len(app.Queues))
	}
	ms, err := app.Settings.GetModelSettings(context.Background())
	if err != nil || ms.ModelName == "" {
		t.Fatalf("expected seeded model settings, got %+v err=%v", ms, err)
	}

	resp := httptest.NewRecorder()
	app.HTTPRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", resp.Code)
	}
}

func TestBuildRejectsMisconfiguredQueue(t *testing.T) {
	_, err := Build(context.Background(), config.Config{
		Env:           "dev",
		LocalStoreDir: t.TempDir(),
		QueueBackend:  "postgres",
	})
	if err == nil {
		t.Fatalf("expected error for postgres queue without a database")
	}
}

func TestSubmissionFlowsThroughOwningPartition(t *testing.T) {
	ctx := context.Background()
	app := buildMemoryApp(t)

	receipt, err := app.Submissions.SubmitDocument(ctx, submissions.Upload{
		UserID:      "student-7",
		FileName:    "essay",
		Extension:   "txt",
		ContentType: "text/plain",
		Content:     []byte("The water cycle moves water between the oceans, the air and the land."),
	})
	if err != nil {
		t.Fatalf("SubmitDocument: %v", err)
	}
	if !receipt.Accepted || receipt.Version != 1 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	q := app.Queues[app.Router.Partition("student-7")]
	d, err := q.Receive(ctx)
	if err != nil || d == nil {
		t.Fatalf("expected an item on the owning partition, got %v err=%v", d, err)
	}
	if err := workerproc.HandleMessage(ctx, app.Processor, string(d.Body)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if err := d.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rec, err := app.Analyses.Get(ctx, "student-7", "essay_v1.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status == analyses.StatusInProgress {
		t.Fatalf("expected a terminal status, got %s", rec.Status)
	}
}
