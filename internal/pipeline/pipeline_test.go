package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"review-backend/internal/aggregator"
	"review-backend/internal/analyses"
	"review-backend/internal/documents"
	"review-backend/internal/estimator"
	"review-backend/internal/llm"
	"review-backend/internal/queue"
	"review-backend/internal/settings"
	"review-backend/internal/shared/storage/object/local"
)

const validReply = `{"potential_improvements":[{"location":"Paragraph 1","suggestion":"State the thesis earlier."}],"score":7,"potential_references":[{"title":"On Writing Well","author":"Zinsser"}]}`

type stubLLM struct {
	mu    sync.Mutex
	calls int
	reply string
}

func (s *stubLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.reply, nil
}

func (s *stubLLM) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(step)
		return t
	}
}

type fixture struct {
	docs     *documents.Store
	repo     *analyses.MemoryRepo
	history  *estimator.MemoryHistory
	llm      *stubLLM
	settings *settings.Service
	proc     *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		docs:     documents.NewStore(local.New(t.TempDir())),
		repo:     analyses.NewMemoryRepo(),
		history:  estimator.NewMemoryHistory(),
		llm:      &stubLLM{reply: validReply},
		settings: settings.NewService(settings.NewMemoryStore(), settings.DefaultDefaults()),
	}
	f.proc = NewProcessor(f.docs, f.repo, aggregator.New(f.llm), f.settings,
		estimator.New(f.history, 0, 0))
	f.proc.now = steppingClock(1500 * time.Millisecond)
	return f
}

func (f *fixture) upload(t *testing.T, req queue.SubmissionRequest, contentType, body string) {
	t.Helper()
	key := documents.FileKey(req.UserID, req.FileName, req.Version, req.Extension)
	if err := f.docs.Upload(context.Background(), key, []byte(body), contentType, req.CourseID); err != nil {
		t.Fatalf("upload: %v", err)
	}
}

func (f *fixture) record(t *testing.T, req queue.SubmissionRequest) analyses.Record {
	t.Helper()
	rec, err := f.repo.Get(context.Background(), req.UserID, documents.VersionedName(req.FileName, req.Version, req.Extension))
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	return rec
}

func essay() queue.SubmissionRequest {
	return queue.SubmissionRequest{UserID: "u1", FileName: "essay", Version: 1, Extension: "txt", CourseID: "c1"}
}

func TestEndToEndShortDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := essay()
	text := strings.Repeat("lorem ", 400)[:2000]
	f.upload(t, req, "text/plain", text)

	q := queue.NewMemoryQueue(time.Minute)
	orch := NewOrchestrator(&queue.Router{Queues: []queue.Queue{q}}, f.settings, analyses.NewService(f.repo), nil)
	ok, err := orch.Submit(ctx, "u1", req)
	if err != nil || !ok {
		t.Fatalf("Submit: ok=%v err=%v", ok, err)
	}

	w := &Worker{Queue: q, Processor: f.proc}
	if !w.poll(ctx) {
		t.Fatalf("expected an item to be processed")
	}

	rec := f.record(t, req)
	if rec.Status != analyses.StatusAnalyzed || rec.Score != 7 {
		t.Fatalf("expected ANALYZED with score 7, got %+v", rec)
	}
	if rec.ProcessTimeSeconds <= 0 {
		t.Fatalf("expected positive process time, got %v", rec.ProcessTimeSeconds)
	}
	if rec.CourseID != "c1" || len(rec.PotentialImprovements) != 1 || len(rec.References) != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if f.llm.count() != 1 {
		t.Fatalf("expected one model call, got %d", f.llm.count())
	}
	if q.Len() != 0 {
		t.Fatalf("expected item to be committed")
	}
	samples, _ := f.history.All(ctx)
	if len(samples) != 1 || samples[0].TextLength != 2000 || samples[0].ObservedMs != 1500 {
		t.Fatalf("unexpected samples %+v", samples)
	}
}

func TestProcessRedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := essay()
	f.upload(t, req, "text/plain", "a short essay about rivers")

	for i := 0; i < 2; i++ {
		if err := f.proc.Process(ctx, req); err != nil {
			t.Fatalf("Process #%d: %v", i+1, err)
		}
	}

	recs, _ := f.repo.ListByUser(ctx, "u1")
	if len(recs) != 1 || recs[0].Status != analyses.StatusAnalyzed || len(recs[0].PotentialImprovements) != 1 {
		t.Fatalf("expected one record reflecting a single run, got %+v", recs)
	}
	samples, _ := f.history.All(ctx)
	if len(samples) != 1 {
		t.Fatalf("expected one sample per text length, got %+v", samples)
	}
}

func TestProcessInputFailuresEndNotAnalyzed(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		upload      bool
	}{
		{name: "unsupported", contentType: "image/png", body: "\x89PNG", upload: true},
		{name: "empty", contentType: "text/plain", body: "   ", upload: true},
		{name: "missing document"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := essay()
			if tt.upload {
				f.upload(t, req, tt.contentType, tt.body)
			}
			if err := f.proc.Process(context.Background(), req); err != nil {
				t.Fatalf("Process: %v", err)
			}
			rec := f.record(t, req)
			if rec.Status != analyses.StatusNotAnalyzed || rec.Score != 0 || len(rec.PotentialImprovements) != 0 {
				t.Fatalf("expected zeroed NOT_ANALYZED, got %+v", rec)
			}
			if f.llm.count() != 0 {
				t.Fatalf("expected no model calls, got %d", f.llm.count())
			}
			if samples, _ := f.history.All(context.Background()); len(samples) != 0 {
				t.Fatalf("expected no sample on failure, got %+v", samples)
			}
		})
	}
}

type panicAnalyzer struct{}

func (panicAnalyzer) Analyze(ctx context.Context, text string, ms settings.ModelSettings) (aggregator.Result, error) {
	panic("boom")
}

func TestProcessRecoversPanics(t *testing.T) {
	f := newFixture(t)
	f.proc.Analyzer = panicAnalyzer{}
	req := essay()
	f.upload(t, req, "text/plain", "text")

	if err := f.proc.Process(context.Background(), req); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if rec := f.record(t, req); rec.Status != analyses.StatusNotAnalyzed {
		t.Fatalf("expected NOT_ANALYZED after panic, got %s", rec.Status)
	}
}

type flakyRepo struct {
	*analyses.MemoryRepo
	failStatus map[string]bool
}

func (r *flakyRepo) Put(ctx context.Context, rec analyses.Record) error {
	if r.failStatus[rec.Status] {
		return errors.New("store unavailable")
	}
	return r.MemoryRepo.Put(ctx, rec)
}

func TestProcessStoreFailures(t *testing.T) {
	tests := []struct {
		name       string
		failStatus map[string]bool
		wantErr    bool
		wantStatus string
	}{
		{name: "mark intent fails", failStatus: map[string]bool{analyses.StatusInProgress: true}, wantErr: true},
		{name: "analyzed write falls back", failStatus: map[string]bool{analyses.StatusAnalyzed: true}, wantStatus: analyses.StatusNotAnalyzed},
		{name: "no terminal write", failStatus: map[string]bool{analyses.StatusAnalyzed: true, analyses.StatusNotAnalyzed: true}, wantErr: true, wantStatus: analyses.StatusInProgress},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			repo := &flakyRepo{MemoryRepo: f.repo, failStatus: tt.failStatus}
			f.proc.Analyses = repo
			req := essay()
			f.upload(t, req, "text/plain", "some text")

			err := f.proc.Process(context.Background(), req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Process err=%v, wantErr=%v", err, tt.wantErr)
			}
			if tt.wantStatus == "" {
				if _, err := f.repo.Get(context.Background(), "u1", "essay_v1.txt"); !errors.Is(err, analyses.ErrNotFound) {
					t.Fatalf("expected no record, got %v", err)
				}
				if f.llm.count() != 0 {
					t.Fatalf("expected no model call before intent is marked")
				}
				return
			}
			if rec := f.record(t, req); rec.Status != tt.wantStatus {
				t.Fatalf("expected %s, got %s", tt.wantStatus, rec.Status)
			}
		})
	}
}

func TestWorkerReleasesFailedItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.proc.Analyses = &flakyRepo{MemoryRepo: f.repo, failStatus: map[string]bool{analyses.StatusInProgress: true}}
	req := essay()
	f.upload(t, req, "text/plain", "text")

	q := queue.NewMemoryQueue(time.Hour)
	body, _ := queue.EncodeMessage(req)
	if err := q.Send(ctx, body); err != nil {
		t.Fatalf("Send: %v", err)
	}

	w := &Worker{Queue: q, Processor: f.proc}
	w.poll(ctx)
	d, _ := q.Receive(ctx)
	if d == nil || d.Attempts != 2 {
		t.Fatalf("expected item to be released for redelivery, got %+v", d)
	}
}

func TestWorkerDropsUndecodableItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q := queue.NewMemoryQueue(time.Hour)
	for _, body := range []string{"{not json", `{"userId":"u1"}`} {
		if err := q.Send(ctx, []byte(body)); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	w := &Worker{Queue: q, Processor: f.proc}
	w.poll(ctx)
	w.poll(ctx)
	if q.Len() != 0 {
		t.Fatalf("expected unrecoverable items to be committed, %d left", q.Len())
	}
	if recs, _ := f.repo.ListByUser(ctx, "u1"); len(recs) != 0 {
		t.Fatalf("expected no records, got %+v", recs)
	}
}

type cancellingAnalyzer struct {
	cancel context.CancelFunc
	seen   error
}

func (a *cancellingAnalyzer) Analyze(ctx context.Context, text string, ms settings.ModelSettings) (aggregator.Result, error) {
	a.cancel()
	a.seen = ctx.Err()
	return aggregator.Result{Score: 5}, nil
}

func TestWorkerFinishesInFlightItemAfterCancel(t *testing.T) {
	f := newFixture(t)
	req := essay()
	f.upload(t, req, "text/plain", "text")

	q := queue.NewMemoryQueue(time.Hour)
	body, _ := queue.EncodeMessage(req)
	_ = q.Send(context.Background(), body)

	ctx, cancel := context.WithCancel(context.Background())
	analyzer := &cancellingAnalyzer{cancel: cancel}
	f.proc.Analyzer = analyzer

	done := make(chan error, 1)
	go func() { done <- (&Worker{Queue: q, Processor: f.proc, Backoff: time.Millisecond}).Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("worker did not stop after cancellation")
	}
	if analyzer.seen != nil {
		t.Fatalf("expected in-flight processing to ignore cancellation, got %v", analyzer.seen)
	}
	if rec := f.record(t, req); rec.Status != analyses.StatusAnalyzed || rec.Score != 5 {
		t.Fatalf("expected item to finish, got %+v", rec)
	}
	if q.Len() != 0 {
		t.Fatalf("expected item to be committed")
	}
}

func TestWorkerStopsDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{Queue: queue.NewMemoryQueue(0), Processor: newFixture(t).proc, Backoff: time.Hour}

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("worker did not stop during backoff")
	}
}

type stubSummarizer struct {
	items []analyses.Improvement
}

func (s *stubSummarizer) SummarizeSuggestions(ctx context.Context, items []analyses.Improvement, ms settings.ModelSettings) (string, error) {
	s.items = items
	return "grammar", nil
}

func TestOrchestratorSubmitAndMistakes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	queues := []queue.Queue{queue.NewMemoryQueue(0), queue.NewMemoryQueue(0)}
	router := &queue.Router{Queues: queues}
	sum := &stubSummarizer{}
	orch := NewOrchestrator(router, f.settings, analyses.NewService(f.repo), sum)

	if _, err := orch.Submit(ctx, " ", essay()); err == nil {
		t.Fatalf("expected error for blank user")
	}
	if ok, err := orch.Submit(ctx, "u1", essay()); !ok || err != nil {
		t.Fatalf("Submit: ok=%v err=%v", ok, err)
	}
	d, _ := queues[router.Partition("u1")].Receive(ctx)
	if d == nil {
		t.Fatalf("expected item on the owning partition")
	}
	msg, err := queue.DecodeMessage(d.Body)
	if err != nil || msg.RequestID == "" || msg.EnqueuedAt == "" {
		t.Fatalf("expected stamped metadata, got %+v err=%v", msg, err)
	}

	if _, err := orch.CommonMistakes(ctx, "u1"); !errors.Is(err, analyses.ErrNothingToSummarize) {
		t.Fatalf("expected ErrNothingToSummarize, got %v", err)
	}
	_ = f.repo.Put(ctx, analyses.Record{UserID: "u1", FileName: "essay_v1.txt", Status: analyses.StatusAnalyzed, Score: 6,
		PotentialImprovements: []analyses.Improvement{{Location: "p1", Suggestion: "comma"}}})
	got, err := orch.CommonMistakes(ctx, "u1")
	if err != nil || got != "grammar" || len(sum.items) != 1 {
		t.Fatalf("CommonMistakes: %q err=%v items=%v", got, err, sum.items)
	}
}

func TestOrchestratorSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	orch := NewOrchestrator(&queue.Router{}, f.settings, analyses.NewService(f.repo), nil)

	if err := orch.EnsureDefaults(ctx); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	cur, err := orch.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if cur.RateLimit.MaxAttempts != 2 || cur.Model.ModelName != "llama-3.3-70b-versatile" {
		t.Fatalf("unexpected defaults %+v", cur)
	}
	cur.RateLimit.MaxAttempts = 3
	if _, err := orch.UpdateSettings(ctx, cur); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	cur.Model.ModelName = "nope"
	if _, err := orch.UpdateSettings(ctx, cur); !errors.Is(err, settings.ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}
