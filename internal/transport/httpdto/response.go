package httpdto

import (
	"errors"
	"net/http"

	chat_errors "chatcore/pkg/errors"
)

type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// StatusFor maps a domain error onto an HTTP status and response code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, chat_errors.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, chat_errors.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, chat_errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, chat_errors.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, chat_errors.ErrInvalidInput), errors.Is(err, chat_errors.ErrInvalidPayload):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, chat_errors.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, chat_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// NewDomainErrorResponse hides the text of unclassified errors.
func NewDomainErrorResponse(err error) (int, Response[any]) {
	status, code := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return status, NewErrorResponse(msg, code)
}
