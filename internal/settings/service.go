package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"review-backend/internal/llm"
)

// Service reads and validates model and rate-limit settings.
type Service struct {
	store    Store
	defaults Defaults
}

// NewService constructs a Service over store.
func NewService(store Store, defaults Defaults) *Service {
	return &Service{store: store, defaults: defaults}
}

// EnsureDefaults seeds both settings documents if they are absent.
func (s *Service) EnsureDefaults(ctx context.Context) error {
	if err := s.seed(ctx, keyModelSettings, s.defaults.Model); err != nil {
		return err
	}
	return s.seed(ctx, keyRateLimitSettings, s.defaults.RateLimit)
}

// GetModelSettings returns the current model settings, seeding defaults when absent.
func (s *Service) GetModelSettings(ctx context.Context) (ModelSettings, error) {
	var out ModelSettings
	if err := s.load(ctx, keyModelSettings, s.defaults.Model, &out); err != nil {
		return ModelSettings{}, err
	}
	return out, nil
}

// UpdateModelSettings validates and stores model settings.
func (s *Service) UpdateModelSettings(ctx context.Context, in ModelSettings) (ModelSettings, error) {
	in.ModelName = strings.TrimSpace(in.ModelName)
	if err := validateModel(in); err != nil {
		return ModelSettings{}, err
	}
	if in.AdditionalRequirements == nil {
		in.AdditionalRequirements = []string{}
	}
	if err := s.save(ctx, keyModelSettings, in); err != nil {
		return ModelSettings{}, err
	}
	return in, nil
}

// GetRateLimitSettings returns the current rate-limit settings, seeding defaults when absent.
func (s *Service) GetRateLimitSettings(ctx context.Context) (RateLimitSettings, error) {
	var out RateLimitSettings
	if err := s.load(ctx, keyRateLimitSettings, s.defaults.RateLimit, &out); err != nil {
		return RateLimitSettings{}, err
	}
	return out, nil
}

// UpdateRateLimitSettings validates and stores rate-limit settings.
func (s *Service) UpdateRateLimitSettings(ctx context.Context, in RateLimitSettings) (RateLimitSettings, error) {
	if in.MaxAttempts < 1 {
		return RateLimitSettings{}, fmt.Errorf("%w: maxAttempts must be at least 1", ErrInvalidSettings)
	}
	if in.TimeIntervalHours <= 0 {
		return RateLimitSettings{}, fmt.Errorf("%w: timeIntervalHours must be positive", ErrInvalidSettings)
	}
	if err := s.save(ctx, keyRateLimitSettings, in); err != nil {
		return RateLimitSettings{}, err
	}
	return in, nil
}

func validateModel(in ModelSettings) error {
	if !llm.KnownModel(in.ModelName) {
		return fmt.Errorf("%w: model %q is not supported", ErrInvalidSettings, in.ModelName)
	}
	if in.Temperature < 0 || in.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidSettings)
	}
	if in.MaxTokens <= 0 {
		return fmt.Errorf("%w: maxTokens must be positive", ErrInvalidSettings)
	}
	return nil
}

func (s *Service) load(ctx context.Context, key string, def any, out any) error {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		if err := s.seed(ctx, key, def); err != nil {
			return err
		}
		raw, err = s.store.Get(ctx, key)
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Service) seed(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.store.PutIfAbsent(ctx, key, raw); err != nil {
		return fmt.Errorf("seed %s: %w", key, err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
