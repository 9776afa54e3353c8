package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"review-backend/internal/analyses"
	"review-backend/internal/extract"
	"review-backend/internal/llm"
	"review-backend/internal/settings"
	"review-backend/internal/shared/metrics"
	"review-backend/internal/shared/telemetry"
)

// ErrInvalidResponse wraps replies that do not match the response schema.
var ErrInvalidResponse = errors.New("invalid model response")

var compiledSchema = mustSchema()

func mustSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(responseSchema))
	if err != nil {
		panic(fmt.Sprintf("aggregator: compile response schema: %v", err))
	}
	return s
}

// Result is the aggregate of every chunk that produced a valid reply.
type Result struct {
	Score        int                    `json:"score"`
	Improvements []analyses.Improvement `json:"potentialImprovements"`
	References   []analyses.Reference   `json:"references"`
	ChunkCount   int                    `json:"chunkCount"`
	ScoredChunks int                    `json:"scoredChunks"`
}

type chunkReply struct {
	PotentialImprovements []analyses.Improvement `json:"potential_improvements"`
	Score                 int                    `json:"score"`
	PotentialReferences   []analyses.Reference   `json:"potential_references"`
}

// Aggregator splits a document into chunks, scores each with the model and
// merges the replies.
type Aggregator struct {
	LLM llm.Client
	// Window resolves a model's context window. Defaults to llm.ContextWindow.
	Window func(model string) (int, bool)
}

// New constructs an Aggregator over client.
func New(client llm.Client) *Aggregator {
	return &Aggregator{LLM: client, Window: llm.ContextWindow}
}

// Analyze scores text with the model described by ms. Chunks whose call or
// reply fails are skipped; the score is the floored mean of the rest.
func (a *Aggregator) Analyze(ctx context.Context, text string, ms settings.ModelSettings) (Result, error) {
	window := a.Window
	if window == nil {
		window = llm.ContextWindow
	}
	contextWindow, ok := window(ms.ModelName)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", llm.ErrUnknownModel, ms.ModelName)
	}

	requirements := JoinRequirements(ms.AdditionalRequirements)
	budget, err := extract.ChunkBudget(contextWindow, extract.TextLength(BasePrompt()), extract.TextLength(requirements))
	if err != nil {
		return Result{}, err
	}
	system := SystemPrompt(ms.AdditionalRequirements)
	chunks := extract.SplitIntoChunks(text, budget)

	res := Result{
		Improvements: []analyses.Improvement{},
		References:   []analyses.Reference{},
		ChunkCount:   len(chunks),
	}
	total := 0
	for i, chunk := range chunks {
		reply, err := a.analyzeChunk(ctx, llm.Request{
			System:      system,
			User:        ChunkPrompt(i+1, len(chunks), chunk),
			Model:       ms.ModelName,
			Temperature: ms.Temperature,
			MaxTokens:   ms.MaxTokens,
		})
		if err != nil {
			metrics.IncModelChunkFailure()
			telemetry.Warn("aggregator.chunk.failed", map[string]any{
				"chunk": i + 1,
				"total": len(chunks),
				"model": ms.ModelName,
				"error": err.Error(),
			})
			continue
		}
		res.Improvements = append(res.Improvements, reply.PotentialImprovements...)
		res.References = append(res.References, reply.PotentialReferences...)
		total += reply.Score
		res.ScoredChunks++
	}
	if res.ScoredChunks > 0 {
		res.Score = total / res.ScoredChunks
	}

	telemetry.Info("aggregator.done", map[string]any{
		"model":         ms.ModelName,
		"chunk_budget":  budget,
		"chunks":        res.ChunkCount,
		"scored_chunks": res.ScoredChunks,
		"score":         res.Score,
	})
	return res, nil
}

func (a *Aggregator) analyzeChunk(ctx context.Context, req llm.Request) (chunkReply, error) {
	raw, err := a.LLM.Complete(ctx, req)
	if err != nil {
		return chunkReply{}, err
	}
	return parseReply(raw)
}

func parseReply(raw string) (chunkReply, error) {
	payload := llm.CleanResponse(raw)
	if payload == "" {
		return chunkReply{}, fmt.Errorf("%w: empty payload", ErrInvalidResponse)
	}

	result, err := compiledSchema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return chunkReply{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			issues = append(issues, e.String())
		}
		return chunkReply{}, fmt.Errorf("%w: %s", ErrInvalidResponse, strings.Join(issues, "; "))
	}

	var reply chunkReply
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return chunkReply{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return reply, nil
}

// SummarizeSuggestions asks the model for the common mistakes across items.
func (a *Aggregator) SummarizeSuggestions(ctx context.Context, items []analyses.Improvement, ms settings.ModelSettings) (string, error) {
	if len(items) == 0 {
		return "", analyses.ErrNothingToSummarize
	}
	raw, err := a.LLM.Complete(ctx, llm.Request{
		System:      mistakesPrompt,
		User:        suggestionsPrompt(items),
		Model:       ms.ModelName,
		Temperature: ms.Temperature,
		MaxTokens:   ms.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarize suggestions: %w", err)
	}
	out := llm.CleanResponse(raw)
	if out == "" {
		return "", fmt.Errorf("summarize suggestions: %w: empty reply", ErrInvalidResponse)
	}
	return out, nil
}
