package api

import (
	"fmt"
	"net/http"
)

const (
	rateLimitedMessage = "Too much attempts. Try again in 15 minutes"
	fallbackMessage    = "An unexpected error occurred. Please try again."
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func NewRateLimitedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusForbidden,
		Message:    rateLimitedMessage,
	}
}

func NewUnauthorizedError(msg string) *ApiError {
	if msg == "" {
		msg = "Invalid username or password"
	}

	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Message:    msg,
	}
}

func NewConflictError(msg string) *ApiError {
	if msg == "" {
		msg = "Username already exists"
	}

	return &ApiError{
		StatusCode: http.StatusConflict,
		Message:    msg,
	}
}

func NewUnexpectedError(statusCode int, err error) *ApiError {
	return &ApiError{
		StatusCode: statusCode,
		Message:    fallbackMessage,
		Err:        err,
	}
}

// UserMessage returns the string shown to the user for any error coming
// out of this package. Unknown errors collapse to a single fallback.
func UserMessage(err error) string {
	if apiErr, ok := err.(*ApiError); ok {
		return apiErr.Message
	}

	return fallbackMessage
}
