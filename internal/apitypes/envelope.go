// Package apitypes defines the wire types shared by every transport: the
// unified response envelope, identifiers, and the request/response payloads
// for chat, workflow, and task operations.
package apitypes

import (
	"time"

	"github.com/google/uuid"

	"agentflow/internal/errs"
)

// Envelope is the unified response wrapper returned by every HTTP endpoint.
// Code mirrors the HTTP status; Data carries the endpoint-specific payload
// on success. Errors and Path are only populated on failure.
type Envelope struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
	TraceID   string `json:"trace_id"`
	RequestID string `json:"request_id"`

	Errors []ErrorDetail `json:"errors,omitempty"`
	Path   string        `json:"path,omitempty"`
}

// ErrorDetail describes a single field-level validation failure within an
// error envelope.
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Success builds a success envelope for the given data.
func Success(code int, data any, traceID, requestID string) Envelope {
	return Envelope{
		Code:      code,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TraceID:   traceID,
		RequestID: requestID,
	}
}

// Failure builds an error envelope from a structured error, deriving the
// HTTP status code and field-level detail from its kind.
func Failure(err *errs.Error, path, traceID, requestID string) Envelope {
	env := Envelope{
		Code:      err.HTTPStatus(),
		Message:   err.Message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TraceID:   traceID,
		RequestID: requestID,
		Path:      path,
	}
	for _, f := range err.Fields {
		env.Errors = append(env.Errors, ErrorDetail{Field: f.Field, Message: f.Message, Code: f.Code})
	}
	if len(env.Errors) == 0 && err.Kind == errs.KindValidation {
		env.Errors = []ErrorDetail{{Message: err.Message, Code: string(err.Kind)}}
	}
	return env
}

// NewTraceID generates a new process-wide correlation identifier.
func NewTraceID() string { return uuid.NewString() }

// NewRequestID generates a new per-request identifier.
func NewRequestID() string { return uuid.NewString() }
