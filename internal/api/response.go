package api

import (
	"encoding/json"
	"net/http"
)

// JSON writes v as the response body. Payload shapes are part of the
// editor-facing contract, so handlers pass explicit response structs
// rather than a generic envelope.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONSuccess writes the admin surface's {"success":true} body.
func JSONSuccess(w http.ResponseWriter, status int) {
	JSON(w, status, map[string]bool{"success": true})
}

// JSONErrorMessage writes {"error": message}.
func JSONErrorMessage(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// JSONError writes the error's message as {"error": ...}.
func JSONError(w http.ResponseWriter, status int, err error) {
	JSONErrorMessage(w, status, err.Error())
}
