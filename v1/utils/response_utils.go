package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "github.com/turuturustars/turuturustars-sub001/pkg/errors"
)

// ErrorResponse is the wire shape of every failed request
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details"`
}

// RespondWithJSON sends a JSON response with the given status code and data
func RespondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// RespondWithError sends an error response without details
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

// RespondWithSuccess sends a 200 response with ok=true merged into the fields
func RespondWithSuccess(w http.ResponseWriter, fields map[string]interface{}) {
	body := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["ok"] = true
	RespondWithJSON(w, http.StatusOK, body)
}

// RespondWithAPIError converts err into its HTTP status and error body.
// Errors that are not APIErrors are reported as a generic 500.
func RespondWithAPIError(w http.ResponseWriter, err error) {
	apiErr := apperrors.GetAPIError(err)
	if apiErr == nil {
		slog.Error("Unhandled error", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		slog.Error("Request failed", "code", apiErr.Code, "error", apiErr.Error())
	}
	RespondWithJSON(w, apiErr.HTTPStatus, ErrorResponse{Error: apiErr.Message, Details: apiErr.Details})
}
