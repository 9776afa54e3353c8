package extract

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrPromptTooLarge is returned when the prompt leaves no room for document text.
var ErrPromptTooLarge = errors.New("prompt exceeds model context window")

// TextLength returns the length of text in characters.
func TextLength(text string) int {
	return utf8.RuneCountInString(text)
}

// EstimateTokens approximates the token count as one token per four characters.
func EstimateTokens(text string) int {
	return (TextLength(text) + 3) / 4
}

// ChunkBudget returns the per-chunk token budget left after the system prompt
// and additional requirements, both given in characters.
func ChunkBudget(contextWindow, systemPromptLen, additionalRequirementsLen int) (int, error) {
	remaining := contextWindow - (systemPromptLen + additionalRequirementsLen)
	if remaining <= 0 {
		return 0, ErrPromptTooLarge
	}
	return (remaining + 3) / 4, nil
}

// SplitIntoChunks packs space-separated words greedily into chunks whose
// estimated token count stays within maxTokens. A single word larger than the
// budget becomes its own chunk. Joining the result with " " yields text.
func SplitIntoChunks(text string, maxTokens int) []string {
	if text == "" {
		return nil
	}

	words := strings.Split(text, " ")
	var chunks []string
	start := 0
	for i := 1; i < len(words); i++ {
		candidate := strings.Join(words[start:i+1], " ")
		if EstimateTokens(candidate) <= maxTokens {
			continue
		}
		// Runs of spaces produce empty words; never split where either side would be empty.
		prev := strings.Join(words[start:i], " ")
		if prev == "" || (i == len(words)-1 && words[i] == "") {
			continue
		}
		chunks = append(chunks, prev)
		start = i
	}
	return append(chunks, strings.Join(words[start:], " "))
}
