package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	CodeRender          = "RENDER_ERROR"
	CodeRecognition     = "RECOGNITION_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeArchive         = "ARCHIVE_ERROR"
	CodeValidation      = "VALIDATION_ERROR"
	CodeConfig          = "CONFIG_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeDatabase        = "DATABASE_ERROR"
)

// Common application errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrDatabase        = errors.New("database error")
	ErrValidation      = errors.New("validation failed")
	ErrRender          = errors.New("render failed")
	ErrRecognition     = errors.New("recognition failed")
	ErrExternalService = errors.New("external service failed")
	ErrArchive         = errors.New("archive unreadable")
)

var sentinelByCode = map[string]error{
	CodeRender:          ErrRender,
	CodeRecognition:     ErrRecognition,
	CodeExternalService: ErrExternalService,
	CodeArchive:         ErrArchive,
	CodeValidation:      ErrValidation,
	CodeConfig:          ErrInvalidInput,
	CodeNotFound:        ErrNotFound,
	CodeDatabase:        ErrDatabase,
}

// Is matches the sentinel that belongs to the error's code, so
// errors.Is(NewRenderError("x", io.EOF), ErrRender) holds while Unwrap
// still exposes the concrete cause.
func (e *AppError) Is(target error) bool {
	s, ok := sentinelByCode[e.Code]
	return ok && s == target
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NewRenderError(message string, cause error) *AppError {
	return NewAppError(CodeRender, message, cause)
}

func NewRecognitionError(message string, cause error) *AppError {
	return NewAppError(CodeRecognition, message, cause)
}

func NewExternalServiceError(message string, cause error) *AppError {
	return NewAppError(CodeExternalService, message, cause)
}

func NewArchiveError(message string, cause error) *AppError {
	return NewAppError(CodeArchive, message, cause)
}

// IsCode reports whether err carries an AppError with the given code anywhere in its chain.
func IsCode(err error, code string) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) {
			if ae.Code == code {
				return true
			}
			err = ae.Cause
			continue
		}
		return false
	}
	return false
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
