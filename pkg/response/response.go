// Package response writes JSON bodies for plain http.Handlers. Resource
// payloads are written as-is; errors use a small envelope
// {"status":..,"message":..,"errors":..}.
package response

import (
	"encoding/json"
	"net/http"
)

// Envelope is the error body shape shared with pkg/ctx.
type Envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func OK(w http.ResponseWriter, v interface{}) { JSON(w, http.StatusOK, v) }

func Created(w http.ResponseWriter, v interface{}) { JSON(w, http.StatusCreated, v) }

// Error writes the error envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Status: status, Message: message})
}

// ValidationError writes a 422 with field-level messages.
func ValidationError(w http.ResponseWriter, errs map[string]string) {
	JSON(w, http.StatusUnprocessableEntity, Envelope{
		Status:  http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Errors:  errs,
	})
}

func Unauthorized(w http.ResponseWriter) { Error(w, http.StatusUnauthorized, "Unauthorized") }

func Forbidden(w http.ResponseWriter) { Error(w, http.StatusForbidden, "Forbidden") }

func NotFound(w http.ResponseWriter) { Error(w, http.StatusNotFound, "Not found") }
