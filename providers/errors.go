package providers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ChiefPay/chiefpay-go/models"
)

// APIError is returned when the server answers with a non-retriable status,
// when retries are exhausted, or when the request never reached the server.
// Status is 0 in the last case and Err holds the network failure.
type APIError struct {
	Status  int
	Kind    models.ErrorKind
	Body    string
	Message string
	Err     error
}

func newAPIError(status int, statusText string, body string) *APIError {
	if statusText == "" {
		statusText = http.StatusText(status)
	}
	return &APIError{
		Status:  status,
		Kind:    models.ClassifyStatus(status),
		Body:    body,
		Message: fmt.Sprintf("HTTP %d %s. Body: %s", status, statusText, body),
	}
}

func newNetworkError(err error) *APIError {
	return &APIError{
		Kind:    models.ErrorKindUnknown,
		Message: fmt.Sprintf("request failed: %v", err),
		Err:     err,
	}
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) IsNotFound() bool {
	return e.Kind == models.ErrorKindNotFound
}

func (e *APIError) IsUnauthorized() bool {
	return e.Kind == models.ErrorKindUnauthorized
}

func (e *APIError) IsRateLimited() bool {
	return e.Kind == models.ErrorKindTooManyRequests
}

// Temporary reports whether the status is one the transport retries.
func (e *APIError) Temporary() bool {
	return isTransientStatus(e.Status)
}

// ValidationError reports arguments rejected before any request was sent.
type ValidationError struct {
	Fields  []string
	Message string
}

func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Message: message}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", strings.Join(e.Fields, ", "), e.Message)
}
