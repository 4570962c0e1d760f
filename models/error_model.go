package models

import (
	"fmt"
	"net/http"
)

// ErrorKind is the semantic class of a failed ChiefPay API call.
// It is derived from the HTTP status code only.
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindInvalidRequest
	ErrorKindUnauthorized
	ErrorKindPermissionDenied
	ErrorKindNotFound
	ErrorKindConflict
	ErrorKindTooManyRequests
	ErrorKindInternalError
	ErrorKindBadGateway
	ErrorKindServiceUnavailable
)

var statusKinds = map[int]ErrorKind{
	http.StatusBadRequest:          ErrorKindInvalidRequest,
	http.StatusUnauthorized:        ErrorKindUnauthorized,
	http.StatusForbidden:           ErrorKindPermissionDenied,
	http.StatusNotFound:            ErrorKindNotFound,
	http.StatusConflict:            ErrorKindConflict,
	http.StatusTooManyRequests:     ErrorKindTooManyRequests,
	http.StatusInternalServerError: ErrorKindInternalError,
	http.StatusBadGateway:          ErrorKindBadGateway,
	http.StatusServiceUnavailable:  ErrorKindServiceUnavailable,
}

// ClassifyStatus maps an HTTP status code to its ErrorKind.
// Any status missing from the table is ErrorKindUnknown.
func ClassifyStatus(status int) ErrorKind {
	if kind, ok := statusKinds[status]; ok {
		return kind
	}
	return ErrorKindUnknown
}

func (e ErrorKind) String() string {
	switch e {
	case ErrorKindUnknown:
		return "unknown"
	case ErrorKindInvalidRequest:
		return "invalid_request"
	case ErrorKindUnauthorized:
		return "unauthorized"
	case ErrorKindPermissionDenied:
		return "permission_denied"
	case ErrorKindNotFound:
		return "not_found"
	case ErrorKindConflict:
		return "conflict"
	case ErrorKindTooManyRequests:
		return "too_many_requests"
	case ErrorKindInternalError:
		return "internal_error"
	case ErrorKindBadGateway:
		return "bad_gateway"
	case ErrorKindServiceUnavailable:
		return "service_unavailable"
	default:
		return fmt.Sprintf("error_kind(%d)", int(e))
	}
}
