package workerproc

import (
	"context"
	"errors"
	"strings"

	"review-backend/internal/queue"
	"review-backend/internal/shared/util"
)

// Processor runs one submission to a terminal analysis state.
type Processor interface {
	Process(ctx context.Context, req queue.SubmissionRequest) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	return MessageMeta{BodyLen: len(body), BodySHA: util.SHA256Hex(body)}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingFields indicates a message without the fields needed to locate
// the document.
type ErrMissingFields struct {
	Meta      MessageMeta
	RequestID string
	Fields    []string
}

func (e ErrMissingFields) Error() string {
	return "missing fields: " + strings.Join(e.Fields, ", ")
}

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	UserID    string
	FileName  string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process submission"
	}
	return "process submission: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err means the message can never be processed
// and should be removed from the queue.
func Unrecoverable(err error) bool {
	var empty ErrEmptyBody
	var decode ErrDecode
	var missing ErrMissingFields
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.SubmissionRequest, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.SubmissionRequest{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.SubmissionRequest{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if missing := missingFields(msg); len(missing) > 0 {
		return msg, meta, ErrMissingFields{Meta: meta, RequestID: msg.RequestID, Fields: missing}
	}
	return msg, meta, nil
}

func missingFields(msg queue.SubmissionRequest) []string {
	var out []string
	if strings.TrimSpace(msg.UserID) == "" {
		out = append(out, "userId")
	}
	if strings.TrimSpace(msg.FileName) == "" {
		out = append(out, "fileName")
	}
	if msg.Version < 1 {
		out = append(out, "version")
	}
	if strings.TrimSpace(msg.Extension) == "" {
		out = append(out, "extension")
	}
	return out
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.SubmissionRequest) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.SubmissionRequest, bool) {
	if ctx == nil {
		return queue.SubmissionRequest{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.SubmissionRequest)
	return msg, ok
}

// HandleMessage parses, validates, and processes a message payload.
func HandleMessage(ctx context.Context, processor Processor, body string) error {
	if processor == nil {
		return errors.New("submission processor not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}

	if err := processor.Process(ctx, msg); err != nil {
		return ErrProcess{UserID: msg.UserID, FileName: msg.FileName, RequestID: msg.RequestID, Err: err}
	}
	return nil
}
