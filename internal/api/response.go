package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	kberrors "github.com/randalmurphal/kbexport/internal/errors"
)

// APIError is the standard error response format.
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
}

// JSONResponse writes a successful JSON response.
func JSONResponse(w http.ResponseWriter, data any) {
	JSONResponseStatus(w, data, http.StatusOK)
}

// JSONResponseStatus writes a JSON response with a specific status code.
func JSONResponseStatus(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// JSONError writes a simple error response.
func JSONError(w http.ResponseWriter, message string, status int) {
	JSONResponseStatus(w, APIError{Error: message}, status)
}

// HandleError writes err as an APIError. ExportErrors keep their code and
// status; anything else is a 500. Server-side failures are logged.
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	exportErr := kberrors.AsExportError(err)
	if exportErr == nil {
		logger.Error("request failed", "error", err)
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := exportErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", exportErr.Code, "error", err)
	}
	JSONResponseStatus(w, APIError{
		Error: exportErr.What,
		Code:  string(exportErr.Code),
		Why:   exportErr.Why,
		Fix:   exportErr.Fix,
	}, status)
}
