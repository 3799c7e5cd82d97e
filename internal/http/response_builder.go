// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing responses. API
// errors are always JSON objects of the form {"error": "..."}.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"subtrack/internal/core"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.body == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// errorBody is the JSON shape of every API error.
type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError() *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed")
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case core.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrCategoryInUse),
		errors.Is(err, core.ErrDuplicateCategory),
		errors.Is(err, core.ErrBuiltInCategory):
		return http.StatusConflict
	case errors.Is(err, core.ErrEmptyUser):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// FromError builds the error response for a service error. Internal errors
// never leak their message to the client.
func FromError(err error) *ResponseBuilder {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		return InternalServerError()
	}
	if status == http.StatusNotFound {
		return NotFoundError("not found")
	}
	return ErrorResponse(status, err.Error())
}
