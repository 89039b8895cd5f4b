package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every caller-correctable error in this package.
var ErrValidation = errors.New("validation error")

// UnknownSortPropertyError reports a sort-by property with no field mapping.
type UnknownSortPropertyError struct {
	Entity   EntityType
	Property string
}

func (e *UnknownSortPropertyError) Error() string {
	return fmt.Sprintf("%s search cannot sort by unknown property %q", e.Entity, e.Property)
}

// Is makes the error match ErrValidation.
func (e *UnknownSortPropertyError) Is(target error) bool {
	return target == ErrValidation
}

// UnknownDateFilterPropertyError reports a date-filtering property with no field mapping.
type UnknownDateFilterPropertyError struct {
	Entity   EntityType
	Property string
}

func (e *UnknownDateFilterPropertyError) Error() string {
	return fmt.Sprintf("%s search cannot filter by unknown date property %q", e.Entity, e.Property)
}

// Is makes the error match ErrValidation.
func (e *UnknownDateFilterPropertyError) Is(target error) bool {
	return target == ErrValidation
}

// EmptyIDListError reports a bulk delete called without any ids.
type EmptyIDListError struct {
	Entity EntityType
}

func (e *EmptyIDListError) Error() string {
	return fmt.Sprintf("deleting %s items from the index requires at least one id", e.Entity)
}

// Is makes the error match ErrValidation.
func (e *EmptyIDListError) Is(target error) bool {
	return target == ErrValidation
}

// UnknownStatusError reports a status that the entity's vocabulary does not contain.
type UnknownStatusError struct {
	Entity EntityType
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown %s status %q", e.Entity, e.Status)
}

// Is makes the error match ErrValidation.
func (e *UnknownStatusError) Is(target error) bool {
	return target == ErrValidation
}

// InvalidEnvironmentError reports an unparsable deployment environment.
type InvalidEnvironmentError struct {
	Value string
}

func (e *InvalidEnvironmentError) Error() string {
	return fmt.Sprintf("invalid deployment environment %q", e.Value)
}

// Is makes the error match ErrValidation.
func (e *InvalidEnvironmentError) Is(target error) bool {
	return target == ErrValidation
}

// UnknownEntityTypeError reports an unparsable entity type.
type UnknownEntityTypeError struct {
	Value string
}

func (e *UnknownEntityTypeError) Error() string {
	return fmt.Sprintf("unknown entity type %q", e.Value)
}

// Is makes the error match ErrValidation.
func (e *UnknownEntityTypeError) Is(target error) bool {
	return target == ErrValidation
}

// IndexingError wraps a failure that happened while writing a batch of documents.
// Document holds the serialised document that was being written.
type IndexingError struct {
	Entity   EntityType
	Document string
	Err      error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("failed to index %s document: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying failure.
func (e *IndexingError) Unwrap() error {
	return e.Err
}
