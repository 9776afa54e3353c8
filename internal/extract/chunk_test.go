package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestSplitIntoChunksRejoinsExactly(t *testing.T) {
	t.Parallel()

	texts := []string{
		"the quick brown fox jumps over the lazy dog",
		"double  spaces   and trailing ",
		" leading space",
		"supercalifragilisticexpialidocious is long",
		"line\nbreaks\tand tabs stay inside words",
		"żółć gęślą jaźń unicode words",
	}
	for _, text := range texts {
		for _, budget := range []int{1, 2, 3, 5, 50} {
			chunks := SplitIntoChunks(text, budget)
			if got := strings.Join(chunks, " "); got != text {
				t.Fatalf("budget=%d: rejoin %q != %q", budget, got, text)
			}
			for _, c := range chunks {
				if c == "" {
					t.Fatalf("budget=%d: empty chunk in %q", budget, chunks)
				}
			}
		}
	}
}

func TestSplitIntoChunksRespectsBudget(t *testing.T) {
	text := strings.Repeat("word ", 400) + "end"
	chunks := SplitIntoChunks(text, 10)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if strings.Contains(c, " ") && EstimateTokens(c) > 10 {
			t.Fatalf("multi-word chunk %q exceeds budget (%d tokens)", c, EstimateTokens(c))
		}
	}
}

func TestSplitIntoChunksOversizedWord(t *testing.T) {
	long := strings.Repeat("x", 40)
	chunks := SplitIntoChunks("a "+long+" b", 2)
	want := []string{"a", long, "b"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %v, got %v", want, chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d: expected %q, got %q", i, want[i], chunks[i])
		}
	}
}

func TestSplitIntoChunksSmallTextSingleChunk(t *testing.T) {
	text := strings.Repeat("abcd ", 400)[:2000]
	chunks := SplitIntoChunks(text, 8000)
	if len(chunks) != 1 || chunks[0] != text {
		t.Fatalf("expected single chunk, got %d", len(chunks))
	}
}

func TestSplitIntoChunksEmpty(t *testing.T) {
	if chunks := SplitIntoChunks("", 10); chunks != nil {
		t.Fatalf("expected nil, got %v", chunks)
	}
}

func TestEstimateTokensAndLength(t *testing.T) {
	cases := map[string]int{"": 0, "a": 1, "abcd": 1, "abcde": 2, "żółć": 1}
	for in, want := range cases {
		if got := EstimateTokens(in); got != want {
			t.Fatalf("EstimateTokens(%q) = %d, want %d", in, got, want)
		}
	}
	if TextLength("żółć") != 4 {
		t.Fatalf("expected rune length 4")
	}
}

func TestChunkBudget(t *testing.T) {
	got, err := ChunkBudget(8192, 1000, 190)
	if err != nil {
		t.Fatalf("ChunkBudget: %v", err)
	}
	if got != 1751 {
		t.Fatalf("expected 1751, got %d", got)
	}
	if _, err := ChunkBudget(100, 80, 20); !errors.Is(err, ErrPromptTooLarge) {
		t.Fatalf("expected ErrPromptTooLarge, got %v", err)
	}
}
