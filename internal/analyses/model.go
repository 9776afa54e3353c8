package analyses

import "time"

const (
	StatusNotAnalyzed = "NOT_ANALYZED"
	StatusInProgress  = "IN_PROGRESS"
	StatusAnalyzed    = "ANALYZED"
)

// Improvement is one suggested change and where it applies.
type Improvement struct {
	Location   string `json:"location"`
	Suggestion string `json:"suggestion"`
}

// Reference is a suggested source.
type Reference struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Record is the analysis of one document version. FileName is the versioned
// name ("{fileName}_v{version}.{ext}") and with UserID forms the key.
type Record struct {
	UserID                string        `json:"userId"`
	FileName              string        `json:"fileName"`
	Status                string        `json:"status"`
	Score                 int           `json:"score"`
	PotentialImprovements []Improvement `json:"potentialImprovements"`
	References            []Reference   `json:"references"`
	ProcessTimeSeconds    float64       `json:"processTimeSeconds"`
	CourseID              string        `json:"courseId,omitempty"`
	Timestamp             time.Time     `json:"timestamp"`
}

// ValidStatus reports whether status is one of the three record states.
func ValidStatus(status string) bool {
	switch status {
	case StatusNotAnalyzed, StatusInProgress, StatusAnalyzed:
		return true
	}
	return false
}

// normalize enforces the record invariants before it is stored.
func normalize(r Record, now time.Time) Record {
	if r.Status != StatusAnalyzed {
		r.Score = 0
	}
	if r.PotentialImprovements == nil {
		r.PotentialImprovements = []Improvement{}
	}
	if r.References == nil {
		r.References = []Reference{}
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	r.Timestamp = r.Timestamp.UTC()
	return r
}
