package web

// errors.go turns service errors into API responses.
//
// Every error is:
//   - logged with its full technical text and the request id
//   - mapped to a user message with a suggested action and the support code
//   - given the HTTP status that matches its domain.Kind
//
// # Status by kind
//
//	Ownership         409
//	NotFound          404
//	Validation        400
//	RemoteDependency  502 (504 when the registry timed out)
//	FileProcessing    422
//	Conflict          409
//	Busy              503
//	Invariant         500
//	Internal          500

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/logging"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// UserMessage is what a staff member is shown for an error.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

// actions suggests what to do next, by support code.
var actions = map[string]string{
	"CLM001":  "Another staff member is working on this job. Pick a different job or ask them to release it",
	"CLM002":  "Only the staff member holding the claim can change it",
	"CLM003":  "Claim the job first, or check that the claim is in the right state",
	"CLM004":  "Resume the claim before completing it",
	"CLM005":  "Refresh the claim to see its current status",
	"CLM006":  "Check that the job is set up in the job registry, then claim it again",
	"CLM007":  "The claim was changed by another request. Refresh and try again",
	"FST001":  "Refresh the list of file sets for this claim",
	"FST002":  "Please contact support with this code",
	"REG001":  "The job registry is unavailable. Please try again in a few moments",
	"REG002":  "The job registry is slow to respond. Please try again",
	"REG003":  "Check the job id against the job registry",
	"FILE001": "Upload the archive again",
	"FILE002": "Only tab-delimited .txt exports are processed",
	"FILE003": "Export the table as tab-delimited text instead",
	"FILE004": "Check that the export is one of the supported listings",
	"FILE005": "Re-export the listing with all of its columns",
	"FILE006": "Please try again. If it keeps failing contact support with this code",
	"VAL001":  "Check the job id",
	"VAL002":  "Sign in again",
	"VAL003":  "Split the archive into smaller uploads",
	"VAL004":  "Select a non-empty zip archive",
	"VAL005":  "Check the request parameters",
	"VAL006":  "Attach the archive as the \"file\" form field",
	"UPL002":  "Please wait a moment and try again",
	"UPL004":  "Please try again",
	"UPL005":  "Try a smaller archive or check your connection",
	"RATE001": "Please wait a moment before trying again",
	"ERR000":  "Please try again. If the problem persists, contact support",
}

// MapError converts err into a user-facing message. Classified errors keep
// their own message and code; anything else is reported generically.
func MapError(err error) UserMessage {
	var de *domain.Error
	switch {
	case err == nil:
		return UserMessage{}
	case errors.As(err, &de):
		return UserMessage{Message: de.Message, Action: actions[de.Code], Code: de.Code}
	case errors.Is(err, context.DeadlineExceeded):
		return UserMessage{Message: "Request timed out", Action: actions["UPL005"], Code: "UPL005"}
	case errors.Is(err, context.Canceled):
		return UserMessage{Message: "Request was cancelled", Action: actions["UPL004"], Code: "UPL004"}
	default:
		return UserMessage{Message: "An unexpected error occurred", Action: actions["ERR000"], Code: "ERR000"}
	}
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindOwnership, domain.KindConflict:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindRemoteDependency:
		if errors.Is(err, domain.ErrRegistryTimeout) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case domain.KindFileProcessing:
		return http.StatusUnprocessableEntity
	case domain.KindBusy:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError logs err with the request id and writes the mapped response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	msg := MapError(err)

	logger := logging.FromContext(r.Context())
	logFn := logger.Warn
	if status >= http.StatusInternalServerError {
		logFn = logger.Error
	}
	logFn("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"kind", domain.KindOf(err).String(),
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSONStatus(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// logRequestError records a failure that can no longer be reported to the
// client.
func logRequestError(r *http.Request, msg string, err error) {
	logging.FromContext(r.Context()).Warn(msg, "path", r.URL.Path, "error", err)
}

// writeJSON encodes v as a 200 response.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
