// Package response renders the JSON envelopes shared by all API handlers.
package response

import (
	"encoding/json"
	"net/http"
)

// Write sends data as JSON with the given status code. HTML escaping is off
// so templates containing <*> stay readable in responses.
func Write(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}

// WriteSuccess sends data with HTTP 200.
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return Write(w, http.StatusOK, data)
}

// WriteError sends the error envelope: a machine-readable code and a
// human-readable message.
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	_ = Write(w, statusCode, map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
