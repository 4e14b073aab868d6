package services

import "fmt"

// ValidationError rejects empty prompts and empty-after-trim names.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UnauthorizedError means no identity was injected with the request.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string { return e.Message }

// NotFoundError covers both "no such chat" and "not your chat"; callers
// cannot tell them apart.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// UpstreamEmptyError means the model call succeeded but produced blank
// text; nothing was persisted.
type UpstreamEmptyError struct{}

func (e *UpstreamEmptyError) Error() string {
	return "no response generated from the model"
}

// UpstreamError wraps a model transport failure; nothing was persisted.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("model request failed: %v", e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }

// PersistenceError wraps a store failure.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence failed: %v", e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }
