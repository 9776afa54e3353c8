package estimator

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestEstimateEmptyHistoryUsesFormula(t *testing.T) {
	e := New(NewMemoryHistory(), 0, 0)

	got, err := e.Estimate(context.Background(), 1000)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	// 250 tokens / 16 tps = 15.625s + 300ms
	if got != 15925 {
		t.Fatalf("expected 15925ms, got %v", got)
	}
	// integer token division: 1003 chars is still 250 tokens
	if e.SimpleEstimate(1003) != 15925 {
		t.Fatalf("expected integer token division")
	}
}

func TestEstimateAveragesSamplesInWindow(t *testing.T) {
	ctx := context.Background()
	e := New(NewMemoryHistory(), 0, 0)

	for _, s := range []Sample{{1000, 4000}, {1030, 6000}, {1050, 99000}, {949, 99000}} {
		if err := e.History.Put(ctx, s); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	got, err := e.Estimate(ctx, 1000)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	// 1050 and 949 are exactly 50 / 51 away and excluded
	if got != 5000 {
		t.Fatalf("expected mean 5000, got %v", got)
	}
}

func TestEstimateFallsBackOutsideWindow(t *testing.T) {
	ctx := context.Background()
	e := New(NewMemoryHistory(), 0, 0)
	_ = e.History.Put(ctx, Sample{TextLength: 5000, ObservedMs: 1})

	got, err := e.Estimate(ctx, 1000)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got != e.SimpleEstimate(1000) {
		t.Fatalf("expected formula fallback, got %v", got)
	}
}

func TestLogSampleOverwritesSameLength(t *testing.T) {
	ctx := context.Background()
	e := New(NewMemoryHistory(), 0, 0)

	_ = e.LogSample(ctx, 1200, 3*time.Second)
	_ = e.LogSample(ctx, 1200, 5*time.Second)

	samples, _ := e.History.All(ctx)
	if len(samples) != 1 || samples[0].ObservedMs != 5000 {
		t.Fatalf("expected single overwritten sample, got %+v", samples)
	}
	secs, err := e.EstimateSeconds(ctx, 1210)
	if err != nil {
		t.Fatalf("EstimateSeconds: %v", err)
	}
	if secs != 5 {
		t.Fatalf("expected 5s, got %v", secs)
	}
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{1.236: 1.24, 0.004: 0, 2.5: 2.5, 1.234: 1.23}
	for in, want := range cases {
		if got := Round2(in); got != want {
			t.Fatalf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestPGHistoryUpsertsByLength(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	h := NewPGHistory(db)
	mock.ExpectExec("INSERT INTO processing_history").
		WithArgs(1200, float64(3000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT text_length, observed_ms FROM processing_history").
		WillReturnRows(sqlmock.NewRows([]string{"text_length", "observed_ms"}).AddRow(1200, 3000.0))

	if err := h.Put(context.Background(), Sample{TextLength: 1200, ObservedMs: 3000}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	samples, err := h.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(samples) != 1 || samples[0].TextLength != 1200 {
		t.Fatalf("unexpected samples %+v", samples)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
