package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/warp/timetrack/generic"
)

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// badRequest reports a body or query parameter that could not be parsed.
func badRequest(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Code: "invalid_request"}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// writeServiceError maps an attendance error to its HTTP status:
//
//	validation -> 400, conflict -> 409, forbidden -> 403,
//	not found  -> 404, store    -> 503, anything else -> 500
//
// Store failures carry no details; the cause is logged instead.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *generic.ValidationError
		cerr *generic.ConflictError
		aerr *generic.AuthorizationError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   verr.Error(),
			Code:    "validation",
			Details: map[string]string{"field": verr.Field},
		})
	case errors.As(err, &cerr):
		details := ConflictDetails{Kind: cerr.Kind, ExistingID: cerr.ExistingID}
		if cerr.Existing.Valid() {
			start, end := cerr.Existing.Start, cerr.Existing.End
			details.StartDate, details.EndDate = &start, &end
		}
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: cerr.Reason, Code: "conflict", Details: details})
	case errors.As(err, &aerr):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: aerr.Reason, Code: "forbidden", Details: aerr.Action})
	case generic.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case generic.IsRetryable(err):
		h.requestLog(r).WithError(err).Warn("store unavailable")
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error: "the record store is temporarily unavailable, please retry",
			Code:  "unavailable",
		})
	default:
		h.requestLog(r).WithError(err).Error("unhandled error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
	}
}

func (h *Handler) requestLog(r *http.Request) logrus.FieldLogger {
	return h.log.WithFields(logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": middleware.GetReqID(r.Context()),
	})
}
