package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to clients. Search and listing return an empty
// slice for "no results"; these codes are reserved for failed requests.
const (
	CodeUserNotFound   = "USER_NOT_FOUND"
	CodeTicketNotFound = "TICKET_NOT_FOUND"
	CodeValidation     = "VALIDATION_FAILED"
	CodeAccessDenied   = "ACCESS_DENIED"
	CodeAuthentication = "AUTHENTICATION_REQUIRED"
	CodeConflict       = "CONFLICT"
	CodeInternal       = "INTERNAL_ERROR"
)

// DomainError standardizes application errors across services and the
// HTTP boundary.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewUserNotFound(details map[string]any) error {
	return NewDomainError(CodeUserNotFound, "user not found", http.StatusNotFound, details)
}

func NewTicketNotFound(details map[string]any) error {
	return NewDomainError(CodeTicketNotFound, "ticket not found", http.StatusNotFound, details)
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewAccessDenied(message string) error {
	return NewDomainError(CodeAccessDenied, message, http.StatusForbidden, nil)
}

func NewAuthenticationRequired(message string) error {
	return NewDomainError(CodeAuthentication, message, http.StatusUnauthorized, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError. Unmapped errors
// surface as internal errors.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewDomainError("NOT_FOUND", "resource not found", http.StatusNotFound, nil)
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
