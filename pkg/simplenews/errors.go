package simplenews

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrValidation indicates caller input was rejected
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrStorage indicates the blob store failed
	ErrStorage = errors.New("storage failure")

	// ErrTransport indicates the record store could not be reached
	ErrTransport = errors.New("transport failure")

	// ErrUnauthorized indicates a missing or rejected admin credential
	ErrUnauthorized = errors.New("unauthorized")

	// ErrObjectNotFound is returned by blob stores for absent keys
	ErrObjectNotFound = errors.New("object not found")

	// ErrForeignMediaURL indicates a media reference outside the configured media base
	ErrForeignMediaURL = errors.New("media url is not managed by this store")
)

// Record kinds used in error values and logs.
const (
	KindContentItem = "content_item"
	KindSliderEntry = "slider_entry"
	KindMediaAsset  = "media_asset"
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError is returned when required fields are missing or malformed.
type ValidationError struct {
	Kind   string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s", e.Kind)
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Kind, strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(kind, field, message string) *ValidationError {
	return &ValidationError{
		Kind:   kind,
		Fields: []FieldError{{Field: field, Tag: "invalid", Message: message}},
	}
}

// NotFoundError is returned when a record or object does not exist.
type NotFoundError struct {
	Kind string
	ID   string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// NotFound is shorthand for a NotFoundError keyed by a record ID.
func NotFound(kind string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id.String()}
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// TransportError represents a failure talking to the record store.
// Status is the HTTP status for REST backends and 0 otherwise.
type TransportError struct {
	Backend string
	Op      string
	Status  int
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s failed with status %d: %v", e.Backend, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AuthError is returned when a mutation is attempted without a valid admin credential.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "unauthorized"
	}
	return "unauthorized: " + e.Reason
}

func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthorized
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
