package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"review-backend/internal/analyses"
	"review-backend/internal/extract"
	"review-backend/internal/llm"
	"review-backend/internal/settings"
)

type scriptedClient struct {
	mu      sync.Mutex
	reqs    []llm.Request
	replies map[string]string
	fail    map[string]bool
}

func (c *scriptedClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
	for marker := range c.fail {
		if strings.Contains(req.User, marker) {
			return "", errors.New("upstream 503")
		}
	}
	for marker, reply := range c.replies {
		if strings.Contains(req.User, marker) {
			return reply, nil
		}
	}
	return "", errors.New("no scripted reply")
}

func reply(score int, suggestion, title string) string {
	return fmt.Sprintf(`{"potential_improvements":[{"location":"p1","suggestion":%q}],"score":%d,"potential_references":[{"title":%q,"author":"A"}]}`,
		suggestion, score, title)
}

// tinyWindow leaves exactly ten tokens (forty characters) for each chunk.
func tinyWindow(ms settings.ModelSettings) func(string) (int, bool) {
	return func(string) (int, bool) {
		return extract.TextLength(BasePrompt()) + extract.TextLength(JoinRequirements(ms.AdditionalRequirements)) + 40, true
	}
}

func threeChunkText() string {
	return strings.Join([]string{strings.Repeat("a", 30), strings.Repeat("b", 30), strings.Repeat("c", 30)}, " ")
}

func TestAnalyzeSkipsFailedChunk(t *testing.T) {
	ms := settings.DefaultModelSettings()
	client := &scriptedClient{
		replies: map[string]string{
			"(part 1/3)": reply(6, "first", "R1"),
			"(part 3/3)": "<think>hmm</think>```json\n" + reply(9, "third", "R3") + "\n```",
		},
		fail: map[string]bool{"(part 2/3)": true},
	}
	agg := &Aggregator{LLM: client, Window: tinyWindow(ms)}

	res, err := agg.Analyze(context.Background(), threeChunkText(), ms)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.ChunkCount != 3 || res.ScoredChunks != 2 {
		t.Fatalf("expected 3 chunks with 2 scored, got %+v", res)
	}
	if res.Score != 7 {
		t.Fatalf("expected floor((6+9)/2)=7, got %d", res.Score)
	}
	if len(res.Improvements) != 2 || res.Improvements[0].Suggestion != "first" || res.Improvements[1].Suggestion != "third" {
		t.Fatalf("unexpected improvements %+v", res.Improvements)
	}
	if len(res.References) != 2 || res.References[1].Title != "R3" {
		t.Fatalf("unexpected references %+v", res.References)
	}
	if len(client.reqs) != 3 {
		t.Fatalf("expected one call per chunk, got %d", len(client.reqs))
	}
	for _, req := range client.reqs {
		if !strings.Contains(req.System, "Additional requirements:\n"+settings.DefaultRequirements[0]) {
			t.Fatalf("system prompt is missing the requirements")
		}
		if req.Model != ms.ModelName || req.MaxTokens != ms.MaxTokens {
			t.Fatalf("unexpected request settings %+v", req)
		}
	}
}

func TestAnalyzeRejectsSchemaViolations(t *testing.T) {
	ms := settings.DefaultModelSettings()
	client := &scriptedClient{replies: map[string]string{
		"(part 1/3)": `{"score": 11, "potential_improvements": [], "potential_references": []}`,
		"(part 2/3)": `not json`,
		"(part 3/3)": `{"score": 4}`,
	}}
	agg := &Aggregator{LLM: client, Window: tinyWindow(ms)}

	res, err := agg.Analyze(context.Background(), threeChunkText(), ms)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.ScoredChunks != 0 || res.Score != 0 {
		t.Fatalf("expected no scored chunks, got %+v", res)
	}
	if res.Improvements == nil || res.References == nil {
		t.Fatalf("expected empty, non-nil lists")
	}
}

func TestAnalyzeSingleChunkForShortText(t *testing.T) {
	ms := settings.DefaultModelSettings()
	client := &scriptedClient{replies: map[string]string{"(part 1/1)": reply(8, "ok", "R")}}

	res, err := New(client).Analyze(context.Background(), strings.Repeat("word ", 400)[:2000], ms)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(client.reqs) != 1 || res.Score != 8 {
		t.Fatalf("expected a single call scoring 8, got %d calls and %+v", len(client.reqs), res)
	}
}

func TestAnalyzeUnknownModel(t *testing.T) {
	ms := settings.DefaultModelSettings()
	ms.ModelName = "gpt-unknown"

	_, err := New(&scriptedClient{}).Analyze(context.Background(), "text", ms)
	if !errors.Is(err, llm.ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestSummarizeSuggestions(t *testing.T) {
	ms := settings.DefaultModelSettings()
	client := &scriptedClient{replies: map[string]string{"Here are the suggestions": "<think>x</think> Mostly grammar."}}
	agg := New(client)

	if _, err := agg.SummarizeSuggestions(context.Background(), nil, ms); !errors.Is(err, analyses.ErrNothingToSummarize) {
		t.Fatalf("expected ErrNothingToSummarize, got %v", err)
	}
	got, err := agg.SummarizeSuggestions(context.Background(), []analyses.Improvement{{Location: "p2", Suggestion: "fix comma splice"}}, ms)
	if err != nil {
		t.Fatalf("SummarizeSuggestions: %v", err)
	}
	if got != "Mostly grammar." {
		t.Fatalf("unexpected summary %q", got)
	}
	if !strings.Contains(client.reqs[0].User, "p2: fix comma splice") {
		t.Fatalf("suggestions missing from prompt: %q", client.reqs[0].User)
	}
}
