// Package httputil holds the JSON response helpers shared by every handler.
package httputil

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as {"error": code, "error_description": message}.
// Internal errors never leak their description.
func WriteError(w http.ResponseWriter, err error) {
	he := asError(err)
	resp := errorResponse{Error: string(he.Code)}
	if he.Code != CodeInternal {
		resp.ErrorDescription = he.Message
	}
	WriteJSON(w, he.Status(), resp)
}
