// Package errors provides the service error taxonomy shared by the relays and the HTTP layer.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a ServiceError.
type ErrorCode string

const (
	CodeValidation       ErrorCode = "VALIDATION_ERROR"
	CodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	CodeConfiguration    ErrorCode = "CONFIGURATION_ERROR"
	CodeUpstream         ErrorCode = "UPSTREAM_ERROR"
	CodeRateLimited      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// ServiceError is an error that knows which HTTP status it maps to.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a detail field and returns the same error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Cause returns the text of the wrapped error, or the message when nothing is wrapped.
func (e *ServiceError) Cause() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func newError(code ErrorCode, status int, message string, err error) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		Err:        err,
	}
}

// Validation reports a malformed request body or missing field.
func Validation(message string) *ServiceError {
	return newError(CodeValidation, http.StatusBadRequest, message, nil)
}

// MethodNotAllowed reports a request made with the wrong HTTP method.
func MethodNotAllowed(message string) *ServiceError {
	return newError(CodeMethodNotAllowed, http.StatusMethodNotAllowed, message, nil)
}

// Configuration reports a missing credential or endpoint.
func Configuration(message string) *ServiceError {
	return newError(CodeConfiguration, http.StatusInternalServerError, message, nil)
}

// Upstream reports a network, timeout or decode failure talking to a third-party API.
func Upstream(message string, err error) *ServiceError {
	return newError(CodeUpstream, http.StatusInternalServerError, message, err)
}

// Internal reports an unexpected failure inside the service.
func Internal(message string, err error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, err)
}

// RateLimitExceeded reports that a client exceeded its request budget.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return newError(CodeRateLimited, http.StatusTooManyRequests, "Rate limit exceeded", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// GetServiceError returns the first ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if stderrors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

func hasCode(err error, code ErrorCode) bool {
	svcErr := GetServiceError(err)
	return svcErr != nil && svcErr.Code == code
}

// IsValidation reports whether err is a request validation failure (400 or 405).
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation) || hasCode(err, CodeMethodNotAllowed)
}

// IsConfiguration reports whether err is a configuration failure.
func IsConfiguration(err error) bool {
	return hasCode(err, CodeConfiguration)
}

// IsUpstream reports whether err is an upstream failure.
func IsUpstream(err error) bool {
	return hasCode(err, CodeUpstream)
}
