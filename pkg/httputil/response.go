// Package httputil writes the JSON bodies stubd answers with on its own
// behalf (errors, health) as opposed to rule responses.
package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error is a JSON error answer: {"error": Code, "message": Message}.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

// Errorf builds an Error with a formatted message.
func Errorf(status int, code, format string, args ...any) *Error {
	return &Error{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Write sends e and returns its status.
func (e *Error) Write(w http.ResponseWriter) int {
	WriteJSON(w, e.Status, e)
	return e.Status
}

// WriteJSON writes v as JSON with the given status. A nil v sends no body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
