package estimator

import (
	"context"
	"sort"
	"sync"
)

// MemoryHistory keeps samples in process.
type MemoryHistory struct {
	mu      sync.RWMutex
	samples map[int]float64
}

// NewMemoryHistory constructs an empty MemoryHistory.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{samples: make(map[int]float64)}
}

func (h *MemoryHistory) All(ctx context.Context) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Sample, 0, len(h.samples))
	for length, ms := range h.samples {
		out = append(out, Sample{TextLength: length, ObservedMs: ms})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TextLength < out[j].TextLength })
	return out, nil
}

func (h *MemoryHistory) Put(ctx context.Context, s Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	h.samples[s.TextLength] = s.ObservedMs
	h.mu.Unlock()
	return nil
}
