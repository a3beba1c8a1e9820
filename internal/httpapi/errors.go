package httpapi

import (
	"encoding/json"
	"net/http"

	"llmd/internal/dispatch"
	"llmd/internal/registry"
	"llmd/pkg/types"
)

// statusFor maps core error types to HTTP status codes. Unknown names become
// 404; structural failures (uninitialized registry, empty handle set) 409;
// backend-reported failures 502; everything else 500.
func statusFor(err error) int {
	switch {
	case registry.IsModelNotFound(err):
		return http.StatusNotFound
	case registry.IsNotInitialized(err), dispatch.IsNoModels(err):
		return http.StatusConflict
	case registry.IsBackendFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeError maps err and writes it.
func writeError(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	writeJSONError(w, status, err.Error())
	return status
}

// writeJSON writes a 200 JSON body.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
