package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidToken            = errors.New("invalid or expired token")
	ErrUnauthorized            = errors.New("unauthorized access")
	ErrInsufficientPermissions = errors.New("insufficient permissions")

	ErrValidation        = errors.New("invalid input data")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyTerminal   = errors.New("request is already in a terminal status")
	ErrNotFound          = errors.New("resource not found")
	ErrPersistence       = errors.New("persistence failure")

	ErrRequestNotAssignable = errors.New("request is not in an assignable state")
	ErrDeviceUnavailable    = errors.New("device is unavailable")
)

// Error codes carried by AppError.
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeAlreadyTerminal      = "ALREADY_TERMINAL"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeNotFound             = "NOT_FOUND"
	CodePersistence          = "PERSISTENCE_FAILURE"
	CodeRequestNotAssignable = "REQUEST_NOT_ASSIGNABLE"
	CodeDeviceUnavailable    = "DEVICE_UNAVAILABLE"
)

var codeSentinels = map[string]error{
	CodeValidation:           ErrValidation,
	CodeInvalidTransition:    ErrInvalidTransition,
	CodeAlreadyTerminal:      ErrAlreadyTerminal,
	CodeUnauthorized:         ErrUnauthorized,
	CodeNotFound:             ErrNotFound,
	CodePersistence:          ErrPersistence,
	CodeRequestNotAssignable: ErrRequestNotAssignable,
	CodeDeviceUnavailable:    ErrDeviceUnavailable,
}

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel registered for the error code. A terminal-status
// rejection is also an invalid transition.
func (e *AppError) Is(target error) bool {
	if sentinel, ok := codeSentinels[e.Code]; ok && sentinel == target {
		return true
	}
	return e.Code == CodeAlreadyTerminal && target == ErrInvalidTransition
}

func NewAppError(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func Validation(message string, err error) *AppError {
	return NewAppError(CodeValidation, message, err)
}

func Unauthorized(message string) *AppError {
	return NewAppError(CodeUnauthorized, message, nil)
}

func NotFound(message string, err error) *AppError {
	return NewAppError(CodeNotFound, message, err)
}

func Persistence(message string, err error) *AppError {
	return NewAppError(CodePersistence, message, err)
}

// CodeOf returns the code of the outermost AppError in the chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
