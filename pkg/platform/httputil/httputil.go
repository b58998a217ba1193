// Package httputil holds the JSON response helpers shared by every handler.
// The error envelope is {"error": <code>, "error_description": <detail>};
// internal errors omit the description so storage details never leak.
package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the standard error envelope. description is dropped for
// 5xx statuses.
func WriteError(w http.ResponseWriter, status int, code, description string) {
	body := map[string]string{"error": code}
	if description != "" && status < http.StatusInternalServerError {
		body["error_description"] = description
	}
	WriteJSON(w, status, body)
}
