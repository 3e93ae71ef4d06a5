package apperrors

import (
	"errors"
	"fmt"
)

// Base error types
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrGeneration   = errors.New("generation failed")
	ErrTransientIO  = errors.New("transient i/o failure")
	ErrScheduling   = errors.New("scheduling failed")
)

// Kind represents the category of error
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindGeneration   Kind = "generation"
	KindTransientIO  Kind = "transient_io"
	KindScheduling   Kind = "scheduling"
	KindInternal     Kind = "internal"
)

// Error is a structured error for report operations
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "generate", "schedule"
	ID   string // report or template id when applicable
	Err  error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrInvalidState:
		return e.Kind == KindInvalidState
	case ErrGeneration:
		return e.Kind == KindGeneration
	case ErrTransientIO:
		return e.Kind == KindTransientIO
	case ErrScheduling:
		return e.Kind == KindScheduling
	}

	return false
}

// New creates a new Error
func New(kind Kind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

func Validationf(op, format string, args ...interface{}) error {
	return New(KindValidation, op, "", fmt.Errorf(format, args...))
}

func NotFound(op, id string) error {
	return New(KindNotFound, op, id, errors.New("not found"))
}

func InvalidStatef(op, id, format string, args ...interface{}) error {
	return New(KindInvalidState, op, id, fmt.Errorf(format, args...))
}

func Schedulingf(op, format string, args ...interface{}) error {
	return New(KindScheduling, op, "", fmt.Errorf(format, args...))
}

func Generation(op, id string, err error) error {
	return New(KindGeneration, op, id, err)
}

func TransientIO(op string, err error) error {
	return New(KindTransientIO, op, "", err)
}

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Cause returns the innermost message of a chain of *Error values, which is
// what gets persisted on a failed report.
func Cause(err error) error {
	for {
		var e *Error
		if !errors.As(err, &e) || e.Err == nil {
			return err
		}
		err = e.Err
	}
}
