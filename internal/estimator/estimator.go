package estimator

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	DefaultTokensPerSecond = 16
	DefaultOverheadMs      = 300
	DefaultWindow          = 50
)

// Sample is one observed processing time for a text length.
type Sample struct {
	TextLength int     `json:"textLength"`
	ObservedMs float64 `json:"observedMs"`
}

// History stores one sample per exact text length.
type History interface {
	All(ctx context.Context) ([]Sample, error)
	Put(ctx context.Context, s Sample) error
}

// Estimator predicts processing time from past samples of similar length,
// falling back to a throughput formula.
type Estimator struct {
	History         History
	TokensPerSecond float64
	OverheadMs      float64
	Window          int
}

// New returns an Estimator with default tuning. Zero values in tps/overhead use defaults.
func New(history History, tokensPerSecond, overheadMs float64) *Estimator {
	if tokensPerSecond <= 0 {
		tokensPerSecond = DefaultTokensPerSecond
	}
	if overheadMs <= 0 {
		overheadMs = DefaultOverheadMs
	}
	return &Estimator{
		History:         history,
		TokensPerSecond: tokensPerSecond,
		OverheadMs:      overheadMs,
		Window:          DefaultWindow,
	}
}

// SimpleEstimate returns the formula estimate in milliseconds. Tokens are
// counted with integer division.
func (e *Estimator) SimpleEstimate(textLength int) float64 {
	tokens := textLength / 4
	return float64(tokens)/e.TokensPerSecond*1000 + e.OverheadMs
}

// Estimate returns the expected processing time in milliseconds: the mean of
// samples within Window characters, or SimpleEstimate when none are close.
func (e *Estimator) Estimate(ctx context.Context, textLength int) (float64, error) {
	samples, err := e.History.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("load processing history: %w", err)
	}

	var sum float64
	var n int
	for _, s := range samples {
		if abs(s.TextLength-textLength) < e.Window {
			sum += s.ObservedMs
			n++
		}
	}
	if n == 0 {
		return e.SimpleEstimate(textLength), nil
	}
	return sum / float64(n), nil
}

// EstimateSeconds is Estimate in seconds rounded to two decimals.
func (e *Estimator) EstimateSeconds(ctx context.Context, textLength int) (float64, error) {
	ms, err := e.Estimate(ctx, textLength)
	if err != nil {
		return 0, err
	}
	return Round2(ms / 1000), nil
}

// LogSample records an observed processing time, replacing any sample of the same length.
func (e *Estimator) LogSample(ctx context.Context, textLength int, elapsed time.Duration) error {
	return e.History.Put(ctx, Sample{TextLength: textLength, ObservedMs: float64(elapsed.Milliseconds())})
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
