package domain

import (
	"errors"
	"fmt"
)

// Error codes surfaced to callers. Exactly these three kinds exist; anything
// a dependency raises is folded into one of them before leaving the core.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// Dependency identifies which downstream service an error came from.
type Dependency string

const (
	DepEmbedding  Dependency = "embedding"
	DepIndex      Dependency = "index"
	DepGeneration Dependency = "generation"
)

// ValidationError marks caller-supplied input that violates a precondition.
// Never retried; its message is safe to return verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ServiceError marks a downstream dependency failure. Transient errors are
// eligible for retry; once retries are exhausted the error still carries its
// dependency tag so the classifier can name the failing service.
type ServiceError struct {
	Dependency Dependency
	Transient  bool
	Err        error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s service: %v", e.Dependency, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Transientf wraps err as a retryable failure of the given dependency.
func Transientf(dep Dependency, err error) error {
	return &ServiceError{Dependency: dep, Transient: true, Err: err}
}

// Permanentf wraps err as a non-retryable failure of the given dependency.
func Permanentf(dep Dependency, err error) error {
	return &ServiceError{Dependency: dep, Transient: false, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransient reports whether err is a retryable dependency failure.
func IsTransient(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Transient
}
