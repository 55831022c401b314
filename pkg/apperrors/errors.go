package apperrors

import "fmt"

// NotFoundError signals a missing equipment item, usage record or repair
// record referenced by id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// InsufficientStockError is returned when a borrow or withdraw would overdraw
// the available quantity. Exactly one of two concurrent overdrawing
// transactions receives it; the conditional update enforces that.
type InsufficientStockError struct {
	EquipmentID int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for equipment %d: requested %d units", e.EquipmentID, e.Requested)
}

// InvalidStateError is returned for an operation attempted against a record
// whose current state does not permit it.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	return e.Message
}

func NewInvalidState(format string, args ...any) *InvalidStateError {
	return &InvalidStateError{Message: fmt.Sprintf(format, args...)}
}

// AlreadyProcessedError marks an idempotency guard trip, e.g. a double
// confirmation of the same return. Callers treat it as a no-op outcome.
type AlreadyProcessedError struct {
	Message string
}

func (e *AlreadyProcessedError) Error() string {
	return e.Message
}

func NewAlreadyProcessed(format string, args ...any) *AlreadyProcessedError {
	return &AlreadyProcessedError{Message: fmt.Sprintf(format, args...)}
}

// ValidationError marks malformed input before any transaction is opened.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
