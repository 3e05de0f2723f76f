// Package businessflow contains the core business logic for the matching engine
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Run control errors
	ErrConcurrentRunConflict = errors.New("a run of this kind is already in progress")
	ErrUnknownProgram        = errors.New("unknown program")
	ErrInvalidRunType        = errors.New("invalid run type")
	ErrScheduleNotDue        = errors.New("schedule is not due")

	// Collaborator errors
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
	ErrPersistence          = errors.New("persistence failure")

	// Schedule configuration errors
	ErrInvalidScheduleDay  = errors.New("invalid schedule day")
	ErrInvalidScheduleTime = errors.New("invalid schedule time")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsConcurrentRunConflict(err error) bool {
	return errors.Is(err, ErrConcurrentRunConflict)
}

func IsUnknownProgram(err error) bool {
	return errors.Is(err, ErrUnknownProgram)
}

func IsDirectoryUnavailable(err error) bool {
	return errors.Is(err, ErrDirectoryUnavailable)
}

func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

func IsScheduleNotDue(err error) bool {
	return errors.Is(err, ErrScheduleNotDue)
}

func IsInvalidScheduleDay(err error) bool {
	return errors.Is(err, ErrInvalidScheduleDay)
}

func IsInvalidScheduleTime(err error) bool {
	return errors.Is(err, ErrInvalidScheduleTime)
}
