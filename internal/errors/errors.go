// Package errors implements the structured error taxonomy used across the
// ingestion, summarization, retrieval and notification components.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of propagation policy: which
// boundary may see it, whether it is retried, and what the client receives.
type Kind string

const (
	// KindTransient covers upstream hiccups: LLM stream interruption, vector
	// or KV throttling, email send failure, queue visibility timeouts. No
	// local retry is attempted; the caller's path still terminates cleanly.
	KindTransient Kind = "transient"
	// KindPartialDedup covers a chunk that reached the KV store but not the
	// vector store. Safe to reprocess because vector upsert is idempotent on id.
	KindPartialDedup Kind = "partial_dedup"
	// KindBadInput covers missing fields, unknown course, malformed query.
	KindBadInput Kind = "bad_input"
	// KindUnauthorized covers missing/invalid auth on an inbound request.
	KindUnauthorized Kind = "unauthorized"
	// KindFatal covers unreachable credential/KV/vector stores.
	KindFatal Kind = "fatal"
)

// Error wraps an underlying cause with a Kind and structured context fields
// (course_id, post_id, user_id, connection_id, query_id, ...) that accumulate
// as the error propagates upward.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a structured error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Fields: map[string]interface{}{}}
}

// Wrap attaches a Kind and message to an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause, Fields: map[string]interface{}{}}
}

// WithField returns a copy of e with an additional context field, used while
// propagating an error up through component boundaries.
func (e *Error) WithField(key string, value interface{}) *Error {
	fields := make(map[string]interface{}, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Fields: fields, cause: e.cause}
}

// Is reports whether the first structured Error in err's chain has the given
// Kind; structured Errors further down the chain are not consulted.
func Is(err error, kind Kind) bool {
	var structured *Error
	if errors.As(err, &structured) {
		return structured.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err, or KindFatal if err is not a structured Error.
func KindOf(err error) Kind {
	var structured *Error
	if errors.As(err, &structured) {
		return structured.Kind
	}
	return KindFatal
}
