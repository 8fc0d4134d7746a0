package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/banshee-data/score.report/internal/failure"
	"github.com/banshee-data/score.report/internal/monitoring"
)

// WriteJSONError writes a JSON error response with the given status code and message.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("failed to encode json response: %v", err)
	}
}

// WriteJSONOK writes a successful JSON response (200 OK).
func WriteJSONOK(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}

// MethodNotAllowed writes a 405 Method Not Allowed response.
func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// BadRequest writes a 400 Bad Request response with the given message.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// InternalServerError writes a 500 Internal Server Error response.
func InternalServerError(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusInternalServerError, msg)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusNotFound, msg)
}

// FailureBody is the JSON shape of a classified error.
type FailureBody struct {
	RequestID string   `json:"request_id,omitempty"`
	Error     string   `json:"error"`
	Kind      string   `json:"kind"`
	Cause     string   `json:"cause,omitempty"`
	Fields    []string `json:"fields,omitempty"`
	Field     string   `json:"field,omitempty"`
	Value     string   `json:"value,omitempty"`
	Tried     []string `json:"tried,omitempty"`
}

// StatusFor maps a failure to an HTTP status: 400 for caller input, 503 when
// an artifact cannot be loaded, 500 otherwise.
func StatusFor(err error) int {
	switch {
	case failure.KindOf(err).IsValidation():
		return http.StatusBadRequest
	case failure.Root(err).IsArtifact():
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewFailureBody describes err. Kind is the outermost kind; Cause names the
// innermost one when they differ.
func NewFailureBody(requestID string, err error) FailureBody {
	body := FailureBody{
		RequestID: requestID,
		Error:     err.Error(),
		Kind:      failure.KindOf(err).String(),
	}
	if root := failure.Root(err); root.String() != body.Kind {
		body.Cause = root.String()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		fe, ok := e.(*failure.Error)
		if !ok {
			continue
		}
		if body.Fields == nil {
			body.Fields = fe.Fields
		}
		if body.Field == "" {
			body.Field, body.Value = fe.Field, fe.Value
		}
		if body.Tried == nil {
			body.Tried = fe.Tried
		}
	}
	return body
}

// WriteFailure writes err with the status StatusFor picks.
func WriteFailure(w http.ResponseWriter, requestID string, err error) {
	WriteJSON(w, StatusFor(err), NewFailureBody(requestID, err))
}
