package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors that can occur during state handling.
var (
	// ErrInvalidState indicates that a State operation received invalid input.
	ErrInvalidState = errors.New("invalid state")

	// ErrKeyNotFound indicates that a requested StateKey does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrTypeMismatch indicates that a value's type doesn't match the expected type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Ballot format failures carried by FormatError.
var (
	ErrEmptyHeader       = errors.New("empty header")
	ErrEmptyChoice       = errors.New("empty choice name")
	ErrNoBallots         = errors.New("no ballots")
	ErrRowLengthMismatch = errors.New("row length mismatch")
	ErrInvalidMention    = errors.New("invalid mention")
	ErrScaleMismatch     = errors.New("scale mismatch")
)

// Token failures carried by DecodeError.
var (
	ErrEmptyToken          = errors.New("empty choice list")
	ErrMissingField        = errors.New("missing field")
	ErrUnexpectedField     = errors.New("unexpected field")
	ErrUnknownAbbreviation = errors.New("unknown abbreviation")
	ErrInvalidCount        = errors.New("invalid count")
	ErrInvalidScore        = errors.New("invalid score")
	ErrInvalidName         = errors.New("invalid name")
	ErrDuplicateMention    = errors.New("duplicate mention")
)

// ErrDegenerateScore reports that the score formula had a zero denominator.
// It is informational: the result still carries a score chosen by policy.
var ErrDegenerateScore = errors.New("degenerate score")

// StateError represents an error that occurred during State operations.
// It provides context about which key and operation caused the error.
type StateError struct {
	// Key is the name of the state key involved in the failed operation.
	Key string

	// Operation describes what operation was being performed when the error occurred.
	Operation string

	// Err is the underlying error that caused the operation to fail.
	Err error
}

// Error implements the error interface for StateError.
func (e *StateError) Error() string {
	return fmt.Sprintf("state error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

// Unwrap returns the underlying error, supporting Go 1.13+ error unwrapping.
func (e *StateError) Unwrap() error { return e.Err }

// NewStateError creates a new StateError with the given details.
func NewStateError(key, operation string, err error) *StateError {
	return &StateError{
		Key:       key,
		Operation: operation,
		Err:       err,
	}
}

// MissingKey returns a StateError for a key a stage needed but did not find.
func MissingKey[T any](key Key[T]) *StateError {
	return NewStateError(key.name, "Get", ErrKeyNotFound)
}

// FormatError reports a ballot table that cannot be tallied. Err is one of
// the ballot format sentinels; the remaining fields locate the problem and
// are left at their zero value when they do not apply.
type FormatError struct {
	// Err is the failure class, e.g. ErrRowLengthMismatch.
	Err error

	// Row is the 1-based line in the source table (header is line 1).
	Row int

	// Column is the 0-based choice position.
	Column int

	// Choice is the name of the choice at Column.
	Choice string

	// Value is the offending cell.
	Value string

	// Expected and Actual are field or mention counts, depending on Err.
	Expected int
	Actual   int

	// ValidMentions lists the accepted mentions for ErrInvalidMention.
	ValidMentions []string

	// Suggestion is the closest valid mention, if one is near enough.
	Suggestion string
}

// Error implements the error interface for FormatError.
func (e *FormatError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "format error: %v", e.Err)
	if e.Row > 0 {
		fmt.Fprintf(&b, ", row=%d", e.Row)
	}
	if e.Choice != "" {
		fmt.Fprintf(&b, ", choice=%q", e.Choice)
	}
	if e.Value != "" || errors.Is(e.Err, ErrInvalidMention) {
		fmt.Fprintf(&b, ", value=%q", e.Value)
	}
	if e.Expected != 0 || e.Actual != 0 {
		fmt.Fprintf(&b, ", expected=%d, actual=%d", e.Expected, e.Actual)
	}
	if len(e.ValidMentions) > 0 {
		fmt.Fprintf(&b, ", valid=[%s]", strings.Join(e.ValidMentions, ", "))
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, ", suggestion=%q", e.Suggestion)
	}
	return b.String()
}

// Unwrap returns the failure class.
func (e *FormatError) Unwrap() error { return e.Err }

// NewFormatError creates a FormatError of the given class.
func NewFormatError(err error) *FormatError {
	return &FormatError{Err: err, Column: -1}
}

// DecodeError reports a result token that cannot be parsed.
type DecodeError struct {
	// Segment is the 0-based choice segment, or -1 for the whole token.
	Segment int

	// Field names the segment field: name, mention, tally or score.
	Field string

	// Value is the offending text.
	Value string

	// Err is the failure class, e.g. ErrUnknownAbbreviation.
	Err error
}

// Error implements the error interface for DecodeError.
func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode error: segment=%d, err=%v", e.Segment, e.Err)
	}
	return fmt.Sprintf("decode error: segment=%d, field=%s, value=%q, err=%v", e.Segment, e.Field, e.Value, e.Err)
}

// Unwrap returns the failure class.
func (e *DecodeError) Unwrap() error { return e.Err }

// NewDecodeError creates a new DecodeError with the given details.
func NewDecodeError(segment int, field, value string, err error) *DecodeError {
	return &DecodeError{
		Segment: segment,
		Field:   field,
		Value:   value,
		Err:     err,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets callers match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
