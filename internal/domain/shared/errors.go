// Package shared contains common domain types, errors, events, and ports
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Store errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrPartialWrite     = errors.New("partial write")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "course", "user", "social"
	Op      string // Operation that failed, e.g., "Find", "Save"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Course domain errors
var (
	ErrCourseNotFound      = NewDomainError("course", "Find", ErrNotFound, "course not found")
	ErrCourseHasNoLessons  = NewDomainError("course", "TotalLessons", ErrValidation, "course has no lessons")
	ErrInvalidCourseName   = NewDomainError("course", "Validate", ErrEmptyValue, "course name is required")
	ErrCourseAlreadyExists = NewDomainError("course", "Create", ErrAlreadyExists, "course already exists")
)

// User domain errors
var (
	ErrUserNotFound       = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrEmailTaken         = NewDomainError("user", "Create", ErrAlreadyExists, "email already registered")
	ErrInvalidEmail       = NewDomainError("user", "Validate", ErrInvalidFormat, "invalid email")
	ErrWeakPassword       = NewDomainError("user", "Validate", ErrValueOutOfRange, "password must be at least 6 characters")
	ErrInvalidName        = NewDomainError("user", "Validate", ErrEmptyValue, "name is required")
	ErrInvalidCredentials = NewDomainError("user", "Authenticate", ErrUnauthorized, "invalid credentials")
)

// Session errors
var (
	ErrSessionNotFound = NewDomainError("session", "Find", ErrUnauthorized, "session not found")
	ErrInvalidToken    = NewDomainError("session", "Verify", ErrUnauthorized, "invalid token")
)

// Social domain errors
var (
	ErrCommentNotFound     = NewDomainError("social", "FindComment", ErrNotFound, "comment not found")
	ErrEmptyContent        = NewDomainError("social", "Validate", ErrEmptyValue, "content cannot be empty")
	ErrInvalidRating       = NewDomainError("social", "Validate", ErrValueOutOfRange, "rating must be between 1 and 5")
	ErrInvalidReactionType = NewDomainError("social", "Validate", ErrInvalidFormat, "invalid reaction type")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsUnauthorized checks if the error denies access.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsStoreUnavailable checks if a store adapter could not complete the operation.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// ValidationError builds an ad hoc validation error for the given domain.
func ValidationError(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrValidation, message)
}

// StoreUnavailable wraps a driver failure from the named store.
func StoreUnavailable(store, op string, err error) *DomainError {
	return WrapError(store, op, ErrStoreUnavailable, "store unavailable", err)
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTIAL WRITES
// ══════════════════════════════════════════════════════════════════════════════

// Mirror store names used in PartialWriteWarning.
const (
	StoreDocument = "document"
	StoreCache    = "cache"
	StoreGraph    = "graph"
)

// PartialWriteWarning records a best-effort mirror write that failed after the
// authoritative write succeeded. The operation that produced it still succeeded.
type PartialWriteWarning struct {
	Store string `json:"store"`
	Op    string `json:"op"`
	Err   error  `json:"-"`
}

// NewPartialWriteWarning creates a warning for the failed mirror write.
func NewPartialWriteWarning(store, op string, err error) PartialWriteWarning {
	return PartialWriteWarning{Store: store, Op: op, Err: err}
}

// Error implements the error interface.
func (w PartialWriteWarning) Error() string {
	if w.Err != nil {
		return fmt.Sprintf("partial write: %s.%s: %v", w.Store, w.Op, w.Err)
	}
	return fmt.Sprintf("partial write: %s.%s", w.Store, w.Op)
}

// Unwrap exposes the underlying store error.
func (w PartialWriteWarning) Unwrap() error {
	return w.Err
}

// Is matches ErrPartialWrite.
func (w PartialWriteWarning) Is(target error) bool {
	return target == ErrPartialWrite
}
