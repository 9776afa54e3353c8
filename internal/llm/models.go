package llm

import "sort"

// ModelInfo describes a chat model the pipeline can be configured with.
type ModelInfo struct {
	Name          string `json:"name"`
	OwnedBy       string `json:"ownedBy"`
	ContextWindow int    `json:"contextWindow"`
}

var catalog = map[string]ModelInfo{
	"mixtral-8x7b-32768":            {OwnedBy: "Mistral AI", ContextWindow: 32768},
	"llama-3.2-11b-vision-preview":  {OwnedBy: "Meta", ContextWindow: 8192},
	"gemma2-9b-it":                  {OwnedBy: "Google", ContextWindow: 8192},
	"llama-3.3-70b-versatile":       {OwnedBy: "Meta", ContextWindow: 32768},
	"llama-3.2-90b-vision-preview":  {OwnedBy: "Meta", ContextWindow: 8192},
	"llama-3.1-8b-instant":          {OwnedBy: "Meta", ContextWindow: 131072},
	"deepseek-r1-distill-llama-70b": {OwnedBy: "DeepSeek / Meta", ContextWindow: 131072},
	"llama3-8b-8192":                {OwnedBy: "Meta", ContextWindow: 8192},
	"llama3-70b-8192":               {OwnedBy: "Meta", ContextWindow: 8192},
}

// ContextWindow returns the context window (in tokens) for model.
func ContextWindow(model string) (int, bool) {
	info, ok := catalog[model]
	if !ok {
		return 0, false
	}
	return info.ContextWindow, true
}

// KnownModel reports whether model is in the catalog.
func KnownModel(model string) bool {
	_, ok := catalog[model]
	return ok
}

// Models returns the catalog sorted by name.
func Models() []ModelInfo {
	out := make([]ModelInfo, 0, len(catalog))
	for name, info := range catalog {
		info.Name = name
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
