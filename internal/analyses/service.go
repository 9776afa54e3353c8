package analyses

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"review-backend/internal/documents"
)

// ProgressEntry is one analyzed version of a document.
type ProgressEntry struct {
	FileName        string    `json:"fileName"`
	Version         int       `json:"version"`
	Score           int       `json:"score"`
	SuggestionCount int       `json:"suggestionCount"`
	Timestamp       time.Time `json:"timestamp"`
}

// Summary aggregates a user's records.
type Summary struct {
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"byStatus"`
	AverageScore float64        `json:"averageScore"`
}

// Service is the read side over a Repo.
type Service struct {
	Repo Repo
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, userID, fileName string) (Record, error) {
	return s.Repo.Get(ctx, strings.TrimSpace(userID), strings.TrimSpace(fileName))
}

// List returns every record of a user, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Record, error) {
	recs, err := s.Repo.ListByUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].FileName < recs[j].FileName
		}
		return recs[i].Timestamp.After(recs[j].Timestamp)
	})
	return recs, nil
}

// Progress returns the analyzed versions of baseFileName in timestamp order.
func (s *Service) Progress(ctx context.Context, userID, baseFileName string) ([]ProgressEntry, error) {
	recs, err := s.Repo.ListByUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	baseFileName = strings.TrimSpace(baseFileName)
	out := []ProgressEntry{}
	for _, rec := range recs {
		if rec.Status != StatusAnalyzed {
			continue
		}
		name, version, _, ok := documents.ParseVersionedName(rec.FileName)
		if !ok || name != baseFileName {
			continue
		}
		out = append(out, ProgressEntry{
			FileName:        rec.FileName,
			Version:         version,
			Score:           rec.Score,
			SuggestionCount: len(rec.PotentialImprovements),
			Timestamp:       rec.Timestamp,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Version < out[j].Version
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Summary counts records per status and averages the analyzed scores.
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	recs, err := s.Repo.ListByUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{
		ByStatus: map[string]int{
			StatusNotAnalyzed: 0,
			StatusInProgress:  0,
			StatusAnalyzed:    0,
		},
	}
	scoreTotal, analyzed := 0, 0
	for _, rec := range recs {
		sum.Total++
		sum.ByStatus[rec.Status]++
		if rec.Status == StatusAnalyzed {
			scoreTotal += rec.Score
			analyzed++
		}
	}
	if analyzed > 0 {
		sum.AverageScore = math.Round(float64(scoreTotal)/float64(analyzed)*100) / 100
	}
	return sum, nil
}

// Improvements collects every suggestion from the user's analyzed records.
func (s *Service) Improvements(ctx context.Context, userID string) ([]Improvement, error) {
	recs, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []Improvement
	for _, rec := range recs {
		if rec.Status == StatusAnalyzed {
			out = append(out, rec.PotentialImprovements...)
		}
	}
	return out, nil
}
