package apperror

import (
	"encoding/json"
	"net/http"
)

// Response is the JSON body written for every failed request.
type Response struct {
	Success bool   `json:"success"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Write renders err as a structured JSON error with the matching status code.
func Write(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(kind))
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Kind:    kind,
		Message: MessageOf(err),
	})
}
