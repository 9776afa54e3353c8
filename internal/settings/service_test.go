package settings

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestGetModelSettingsSeedsDefaults(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, DefaultDefaults())

	got, err := svc.GetModelSettings(context.Background())
	if err != nil {
		t.Fatalf("GetModelSettings: %v", err)
	}
	if !reflect.DeepEqual(got, DefaultModelSettings()) {
		t.Fatalf("expected defaults, got %+v", got)
	}
	if _, err := store.Get(context.Background(), keyModelSettings); err != nil {
		t.Fatalf("expected defaults to be persisted: %v", err)
	}
}

func TestEnsureDefaultsKeepsExistingValues(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), DefaultDefaults())

	if _, err := svc.UpdateRateLimitSettings(ctx, RateLimitSettings{MaxAttempts: 5, TimeIntervalHours: 2}); err != nil {
		t.Fatalf("UpdateRateLimitSettings: %v", err)
	}
	if err := svc.EnsureDefaults(ctx); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	got, err := svc.GetRateLimitSettings(ctx)
	if err != nil {
		t.Fatalf("GetRateLimitSettings: %v", err)
	}
	if got.MaxAttempts != 5 || got.TimeIntervalHours != 2 {
		t.Fatalf("expected stored settings to survive seeding, got %+v", got)
	}
}

func TestUpdateModelSettingsValidation(t *testing.T) {
	svc := NewService(NewMemoryStore(), DefaultDefaults())

	tests := []struct {
		name    string
		in      ModelSettings
		wantErr bool
	}{
		{name: "valid", in: ModelSettings{ModelName: "llama3-8b-8192", Temperature: 1, MaxTokens: 512}},
		{name: "unknown model", in: ModelSettings{ModelName: "gpt-4o", Temperature: 1, MaxTokens: 512}, wantErr: true},
		{name: "temperature too high", in: ModelSettings{ModelName: "llama3-8b-8192", Temperature: 2.5, MaxTokens: 512}, wantErr: true},
		{name: "negative temperature", in: ModelSettings{ModelName: "llama3-8b-8192", Temperature: -0.1, MaxTokens: 512}, wantErr: true},
		{name: "zero tokens", in: ModelSettings{ModelName: "llama3-8b-8192", Temperature: 0, MaxTokens: 0}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateModelSettings(context.Background(), tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSettings) {
					t.Fatalf("expected ErrInvalidSettings, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateModelSettings: %v", err)
			}
		})
	}
}

func TestUpdateRateLimitSettingsValidation(t *testing.T) {
	svc := NewService(NewMemoryStore(), DefaultDefaults())
	if _, err := svc.UpdateRateLimitSettings(context.Background(), RateLimitSettings{MaxAttempts: 0, TimeIntervalHours: 1}); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
	if _, err := svc.UpdateRateLimitSettings(context.Background(), RateLimitSettings{MaxAttempts: 1, TimeIntervalHours: 0}); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestPGStoreSeedsWithOnConflictDoNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	svc := NewService(NewPGStore(db), DefaultDefaults())

	mock.ExpectQuery("SELECT value FROM settings").
		WithArgs(keyRateLimitSettings).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectExec("ON CONFLICT \\(key\\) DO NOTHING").
		WithArgs(keyRateLimitSettings, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT value FROM settings").
		WithArgs(keyRateLimitSettings).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"maxAttempts":2,"timeIntervalHours":1}`)))

	got, err := svc.GetRateLimitSettings(context.Background())
	if err != nil {
		t.Fatalf("GetRateLimitSettings: %v", err)
	}
	if got != DefaultRateLimitSettings() {
		t.Fatalf("expected defaults, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
