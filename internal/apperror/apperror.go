// internal/apperror/apperror.go

package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

type ErrorType int

const (
	Internal ErrorType = iota
	ConfigurationError
	ConnectionError
	ExecutionError
	UploadFailed
	Busy
	Cancelled
	BadRequest
	Unauthorized
)

var typeCodes = map[ErrorType]string{
	Internal:           "Internal",
	ConfigurationError: "ConfigurationError",
	ConnectionError:    "ConnectionError",
	ExecutionError:     "ExecutionError",
	UploadFailed:       "UploadFailed",
	Busy:               "Busy",
	Cancelled:          "Cancelled",
	BadRequest:         "BadRequest",
	Unauthorized:       "Unauthorized",
}

// String returns the code used in HTTP error responses.
func (t ErrorType) String() string {
	if code, ok := typeCodes[t]; ok {
		return code
	}
	return typeCodes[Internal]
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

// Code returns the machine-readable code for the error type.
func (e *AppError) Code() string {
	return e.Type.String()
}

func New(errType ErrorType, message string, err error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// TypeOf walks the chain and reports the first AppError type, or Internal.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return Internal
}

// Is reports whether err carries an AppError of the given type.
func Is(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errType
}

// HTTPStatus maps an error to the status code the HTTP boundary answers with.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case BadRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Busy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
