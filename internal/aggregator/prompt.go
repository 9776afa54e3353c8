package aggregator

import (
	"fmt"
	"strings"

	"review-backend/internal/analyses"
)

// responseSchema is the JSON schema every chunk reply must satisfy.
const responseSchema = `{
  "type": "object",
  "properties": {
    "potential_improvements": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "suggestion": {
            "type": "string"
          },
          "location": {
            "type": "string"
          }
        },
        "required": [
          "suggestion",
          "location"
        ]
      }
    },
    "score": {
      "type": "integer",
      "minimum": 1,
      "maximum": 10
    },
    "potential_references": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {
            "type": "string"
          },
          "author": {
            "type": "string"
          }
        },
        "required": [
          "title",
          "author"
        ]
      }
    }
  },
  "required": [
    "potential_improvements",
    "score",
    "potential_references"
  ]
}`

// BasePrompt is the system prompt without the additional requirements.
func BasePrompt() string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant and your job is to analyze text and give analyses in JSON.\n")
	b.WriteString("The JSON object must use the schema: ")
	b.WriteString(responseSchema)
	b.WriteString(". Do not include any notes, explanations, or additional comments outside the JSON structure. ")
	b.WriteString("Do not include anything before the open curly brackets. ")
	b.WriteString("Issues need to be reflected in the score.")
	return b.String()
}

// JoinRequirements renders the requirement lines the way they appear in the prompt.
func JoinRequirements(requirements []string) string {
	return strings.Join(requirements, "\n")
}

// SystemPrompt is BasePrompt followed by the additional requirements.
func SystemPrompt(requirements []string) string {
	return BasePrompt() + "\nAdditional requirements:\n" + JoinRequirements(requirements)
}

// ChunkPrompt is the user message for chunk index (1-based) of total.
func ChunkPrompt(index, total int, chunk string) string {
	return fmt.Sprintf("Here is the text (part %d/%d):\n%s", index, total, chunk)
}

const mistakesPrompt = "You are an intelligent assistant tasked with analyzing feedback provided to students on their assignments.\n" +
	"Your goal is to identify the most common, recurring mistakes that appear across the suggestions.\n" +
	"Focus on spotting patterns in the types of errors and categorize them by the nature of the mistake " +
	"(e.g., unclear arguments, incorrect grammar, formatting issues, logical fallacies).\n" +
	"Provide a short summary that highlights the most common mistakes and how often they occur.\n" +
	"Point out the areas that would benefit from more practice.\n"

func suggestionsPrompt(items []analyses.Improvement) string {
	var b strings.Builder
	b.WriteString("Here are the suggestions:\n")
	for _, it := range items {
		b.WriteString("- ")
		if it.Location != "" {
			b.WriteString(it.Location)
			b.WriteString(": ")
		}
		b.WriteString(it.Suggestion)
		b.WriteString("\n")
	}
	return b.String()
}
