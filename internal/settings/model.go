package settings

import "time"

const (
	keyModelSettings     = "model_settings"
	keyRateLimitSettings = "rate_limit_settings"
)

// ModelSettings controls how documents are sent to the model.
type ModelSettings struct {
	ModelName              string   `json:"modelName"`
	Temperature            float64  `json:"temperature"`
	MaxTokens              int      `json:"maxTokens"`
	AdditionalRequirements []string `json:"additionalRequirements"`
}

// RateLimitSettings bounds submissions per user per window.
type RateLimitSettings struct {
	MaxAttempts       int     `json:"maxAttempts"`
	TimeIntervalHours float64 `json:"timeIntervalHours"`
}

// Interval returns the window length.
func (r RateLimitSettings) Interval() time.Duration {
	return time.Duration(r.TimeIntervalHours * float64(time.Hour))
}

// DefaultRequirements are appended to every system prompt unless replaced.
var DefaultRequirements = []string{
	"- Ensure all suggestions are relevant, specific, and practical.",
	"- Use consistent numbering or referencing when specifying locations (e.g., 'Paragraph 3, Sentence 2').",
	"- Avoid generic feedback; focus on actionable items that improve the quality of the text.",
	"- Provide at least one relevant reference in 'potential_references'.",
	"- If any grammatical errors are found, include the correction within the 'suggestion' itself.",
}

// DefaultModelSettings returns the seeded model settings.
func DefaultModelSettings() ModelSettings {
	reqs := make([]string, len(DefaultRequirements))
	copy(reqs, DefaultRequirements)
	return ModelSettings{
		ModelName:              "llama-3.3-70b-versatile",
		Temperature:            0.5,
		MaxTokens:              1024,
		AdditionalRequirements: reqs,
	}
}

// DefaultRateLimitSettings returns two submissions per hour.
func DefaultRateLimitSettings() RateLimitSettings {
	return RateLimitSettings{MaxAttempts: 2, TimeIntervalHours: 1}
}

// Defaults holds the values seeded into an empty store.
type Defaults struct {
	Model     ModelSettings
	RateLimit RateLimitSettings
}

// DefaultDefaults returns the built-in seed values.
func DefaultDefaults() Defaults {
	return Defaults{Model: DefaultModelSettings(), RateLimit: DefaultRateLimitSettings()}
}
