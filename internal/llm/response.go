package llm

import (
	"regexp"
	"strings"
)

var (
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fenceBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// CleanResponse strips reasoning blocks and markdown fences from a model reply,
// leaving only the payload.
func CleanResponse(raw string) string {
	out := thinkBlock.ReplaceAllString(raw, "")
	if m := fenceBlock.FindStringSubmatch(out); m != nil {
		out = m[1]
	}
	return strings.TrimSpace(out)
}
