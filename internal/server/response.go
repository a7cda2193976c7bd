package server

import (
	"encoding/json"
	"net/http"
)

// Failure is the error part of a failed response.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Response is the envelope of every invoke API response.
type Response struct {
	OK    bool     `json:"ok"`
	Data  any      `json:"data,omitempty"`
	Error *Failure `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{OK: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, Response{OK: false, Error: &Failure{Kind: kind, Message: message}})
}
