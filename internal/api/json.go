package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes returned in the "code" field of error responses.
const (
	codeBadRequest        = "bad_request"
	codeUnauthorized      = "unauthorized"
	codeNotFound          = "not_found"
	codeUnsupportedFormat = "unsupported_format"
	codeUnreadableNote    = "unreadable_note"
	codeExportDisabled    = "export_not_configured"
	codeInternal          = "internal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func errorBody(code, msg string) errResponse {
	return errResponse{Code: code, Error: msg}
}
