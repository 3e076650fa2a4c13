package web

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON body returned for any non-2xx response: a kind
// the client can branch on (mirrors rojoerr.Kind's string form) plus a
// human-readable message.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, statusCode int, kind, message string) {
	writeJSON(w, statusCode, ErrorResponse{Kind: kind, Message: message})
}
