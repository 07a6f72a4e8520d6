package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates authorization failure
	ForbiddenError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrAlreadyGenerating is returned when the same generation action is
	// already running for the same target.
	ErrAlreadyGenerating = errors.New("generation already in progress")

	// ErrGenerationCancelled is returned when the user dismissed the
	// conflict dialog.
	ErrGenerationCancelled = errors.New("generation cancelled")

	// ErrMissingData is returned when the generation backend reports that
	// the project has no usable template or source data.
	ErrMissingData = errors.New("missing data")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (section, task, project)
	ResourceID   string // ID of the existing/conflicting resource
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// GenerationConflictError is returned when a generation target already holds
// artifacts and the caller has not chosen between append, replace and cancel.
type GenerationConflictError struct {
	Kind     string
	TargetID string
	Existing int
}

func (e *GenerationConflictError) Error() string {
	return fmt.Sprintf("%s generation target %s already has %d item(s)", e.Kind, e.TargetID, e.Existing)
}

func (e *GenerationConflictError) StatusCode() int {
	return http.StatusConflict
}

func (e *GenerationConflictError) Is(target error) bool {
	return target == ErrConflict
}

// MissingDataError is the typed form of ErrMissingData.
type MissingDataError struct {
	Message string
}

func (e *MissingDataError) Error() string {
	if e.Message == "" {
		return "project is missing template data"
	}
	return e.Message
}

func (e *MissingDataError) StatusCode() int {
	return http.StatusUnprocessableEntity
}

func (e *MissingDataError) Is(target error) bool {
	return target == ErrMissingData
}

// GenerationFailedError reports a failed call to the generation backend.
type GenerationFailedError struct {
	Kind    string
	Status  int // upstream HTTP status, 0 when the request never completed
	Message string
	Err     error
}

func (e *GenerationFailedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s generation failed (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s generation failed: %s", e.Kind, e.Message)
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Err
}

func (e *GenerationFailedError) StatusCode() int {
	return http.StatusBadGateway
}
