package models

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the envelope every JSON endpoint of the API answers with.
type Response[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func NewError(msg string) *ErrorResponse {
	return &ErrorResponse{
		Status:  StatusError,
		Message: msg,
	}
}

func NewSuccess[T any](data T) *Response[T] {
	return &Response[T]{
		Status: StatusSuccess,
		Data:   data,
	}
}
