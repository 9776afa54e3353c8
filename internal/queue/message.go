package queue

import "encoding/json"

// SubmissionRequest identifies one document version to analyze. It is
// immutable once enqueued.
type SubmissionRequest struct {
	UserID     string `json:"userId"`
	FileName   string `json:"fileName"`
	Version    int    `json:"version"`
	Extension  string `json:"extension"`
	CourseID   string `json:"courseId,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt,omitempty"`
}

// EncodeMessage returns the JSON representation of a request.
func EncodeMessage(msg SubmissionRequest) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a SubmissionRequest.
func DecodeMessage(payload []byte) (SubmissionRequest, error) {
	var msg SubmissionRequest
	if err := json.Unmarshal(payload, &msg); err != nil {
		return SubmissionRequest{}, err
	}
	return msg, nil
}
