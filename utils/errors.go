package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies where in the backend boundary an error originated.
// Every kind is surfaced as a transient notification; none is fatal to the
// application.
type ErrorKind string

const (
	KindAuth    ErrorKind = "auth"    // sign-in/sign-up/missing session
	KindQuery   ErrorKind = "query"   // failed table read or write
	KindUpload  ErrorKind = "upload"  // per-file object storage failure
	KindLinkage ErrorKind = "linkage" // attachment rows failed after the message row was created
)

// AppError represents a custom application error with context
type AppError struct {
	Code    int       // HTTP status code
	Kind    ErrorKind // error taxonomy, empty for generic errors
	Message string    // User-friendly message
	Err     error     // Underlying error
}

// NewAppError creates a new AppError
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying error to errors.Is/As
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithKind tags the error with a taxonomy kind
func (e *AppError) WithKind(kind ErrorKind) *AppError {
	e.Kind = kind
	return e
}

// UserMessage returns the provider's message verbatim when one exists,
// falling back to the generic message otherwise.
func (e *AppError) UserMessage() string {
	if e.Err != nil {
		var inner *AppError
		if !errors.As(e.Err, &inner) {
			if msg := e.Err.Error(); msg != "" {
				return msg
			}
		}
	}
	return e.Message
}

// Common error constructors
func BadRequestError(message string, err error) *AppError {
	return NewAppError(400, message, err)
}

func UnauthorizedError(message string, err error) *AppError {
	return NewAppError(401, message, err)
}

func ForbiddenError(message string, err error) *AppError {
	return NewAppError(403, message, err)
}

func NotFoundError(message string, err error) *AppError {
	return NewAppError(404, message, err)
}

func InternalServerError(message string, err error) *AppError {
	return NewAppError(500, message, err)
}

// Taxonomy constructors for the backend boundary

func AuthError(message string, err error) *AppError {
	return NewAppError(401, message, err).WithKind(KindAuth)
}

func QueryError(message string, err error) *AppError {
	return NewAppError(500, message, err).WithKind(KindQuery)
}

func UploadError(message string, err error) *AppError {
	return NewAppError(502, message, err).WithKind(KindUpload)
}

func LinkageError(message string, err error) *AppError {
	return NewAppError(500, message, err).WithKind(KindLinkage)
}
